package metrics

import (
	"strings"
	"testing"
)

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	IncGenerationStarted()
	IncCompileFailed()
	ObserveCompileDurationMs(300)
	ObserveCompileDurationMs(-5)

	out := Render()
	for _, want := range []string{
		"# TYPE generation_started_total counter",
		"compile_failed_total ",
		"# TYPE compile_duration_ms histogram",
		`compile_duration_ms_bucket{le="+Inf"}`,
		`compile_duration_ms_bucket{le="100"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestHistogramCumulativeBuckets(t *testing.T) {
	h := newHistogram([]float64{10, 20})
	h.Observe(5)
	h.Observe(15)
	h.Observe(25)
	snap := h.Snapshot()
	if snap.count != 3 || snap.sum != 45 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 2 {
		t.Fatalf("unexpected bucket counts %v", snap.counts)
	}
}
