// Package pdftest writes small, structurally valid PDFs for tests. Each page
// gets its own MediaBox width so tests can tell pages apart after a merge.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
)

// PageHeight is the MediaBox height of every generated page.
const PageHeight = 792

// Bytes returns a PDF with one page per width.
func Bytes(widths ...float64) []byte {
	if len(widths) == 0 {
		widths = []float64{612}
	}
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	var kids bytes.Buffer
	for i := range widths {
		fmt.Fprintf(&kids, "%d 0 R ", 3+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [ %s] /Count %d >>", kids.String(), len(widths)))

	for i, w := range widths {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (page %d) Tj ET", i+1)
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %d] /Contents %d 0 R /Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> >> >>",
			w, PageHeight, 4+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// Write stores a PDF with one page per width at path, creating parent directories.
func Write(t testing.TB, path string, widths ...float64) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("pdftest: mkdir: %v", err)
	}
	if err := os.WriteFile(path, Bytes(widths...), 0o644); err != nil {
		t.Fatalf("pdftest: write: %v", err)
	}
	return path
}

// PageWidths returns the MediaBox width of every page in order.
func PageWidths(path string) (widths []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			widths, err = nil, fmt.Errorf("read %s: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	for i := 1; i <= r.NumPage(); i++ {
		v := r.Page(i).V
		box := v.Key("MediaBox")
		for box.IsNull() && !v.Key("Parent").IsNull() {
			v = v.Key("Parent")
			box = v.Key("MediaBox")
		}
		if box.Len() < 4 {
			return nil, fmt.Errorf("page %d has no MediaBox", i)
		}
		widths = append(widths, box.Index(2).Float64()-box.Index(0).Float64())
	}
	return widths, nil
}
