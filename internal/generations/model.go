package generations

import "time"

// Record is one completed generation. Records are append-only; deleting one
// never removes the generated file.
type Record struct {
	ID              string
	CreatedAt       time.Time
	Filename        string
	StorageKey      string
	CVFile          string
	CoverLetterFile string
	Attachments     []string
	PostingID       string
	CompanyName     string
	JobTitle        string
	Combined        bool
	PageCount       int
	SizeBytes       int64
}
