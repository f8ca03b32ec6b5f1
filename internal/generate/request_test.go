package generate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func documents(slots []slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.document())
	}
	return out
}

func TestPlanOrder(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "default order",
			req:  Request{Attachments: []string{"b.pdf", "a.pdf"}, CoverLetterFile: "letter", CVFile: "cv", Combine: true},
			want: []string{"cv/cv.tex", "cover_letter/letter.tex", "attachment/b.pdf", "attachment/a.pdf"},
		},
		{
			name: "explicit order",
			req:  Request{CVFile: "cv", CoverLetterFile: "letter", Attachments: []string{"a.pdf"}, Combine: true, Order: []string{"a.pdf", SlotCoverLetter, SlotCV}},
			want: []string{"attachment/a.pdf", "cover_letter/letter.tex", "cv/cv.tex"},
		},
		{
			name: "single attachment",
			req:  Request{Attachments: []string{"a.pdf"}},
			want: []string{"attachment/a.pdf"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := plan(tt.req)
			if err != nil {
				t.Fatalf("plan: %v", err)
			}
			if diff := cmp.Diff(tt.want, documents(slots)); diff != "" {
				t.Fatalf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanDoesNotModifyRequest(t *testing.T) {
	req := Request{CVFile: " cv ", Attachments: []string{"a.pdf"}, Combine: true, Order: []string{"a.pdf", SlotCV}}
	if _, err := plan(req); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if req.CVFile != " cv " || req.Order[0] != "a.pdf" {
		t.Fatalf("request was modified: %+v", req)
	}
}

func TestFingerprintStable(t *testing.T) {
	req := Request{CVFile: "cv", Combine: true, CustomVariables: map[string]string{"x": "1", "y": "2"}}
	slots, err := plan(req)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	first := fingerprint(req, slots)
	for i := 0; i < 5; i++ {
		if got := fingerprint(req, slots); got != first {
			t.Fatalf("fingerprint changed between calls: %s vs %s", first, got)
		}
	}

	other := req
	other.CustomVariables = map[string]string{"x": "1", "y": "3"}
	if fingerprint(other, slots) == first {
		t.Fatalf("expected different variables to change the fingerprint")
	}
}

func TestOutputName(t *testing.T) {
	cv, _ := plan(Request{CVFile: "Senior CV"})
	both, _ := plan(Request{CVFile: "cv", CoverLetterFile: "letter", Combine: true})

	tests := []struct {
		name    string
		company string
		slots   []slot
		want    string
	}{
		{name: "company", company: "Société Générale", slots: both, want: "Societe_Generale_abcdef12_3f2a9c1e.pdf"},
		{name: "single template", slots: cv, want: "Senior_CV_abcdef12_3f2a9c1e.pdf"},
		{name: "several without company", company: "  ", slots: both, want: "application_abcdef12_3f2a9c1e.pdf"},
		{name: "unsluggable stem", slots: []slot{{kind: kindAttachment, name: "—.pdf"}}, want: "document_abcdef12_3f2a9c1e.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outputName(tt.company, tt.slots, "abcdef1234567890", "3f2a9c1e-0000-4000")
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
