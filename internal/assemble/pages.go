package assemble

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PageCount opens path and returns its number of pages. Files the reader
// cannot parse are reported as errors.
func PageCount(path string) (n int, err error) {
	defer func() {
		// the reader panics on some truncated inputs
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("read %s: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}
