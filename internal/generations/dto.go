package generations

import "time"

type recordResponse struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	Filename        string    `json:"filename"`
	CVFile          string    `json:"cvFile,omitempty"`
	CoverLetterFile string    `json:"coverLetterFile,omitempty"`
	Attachments     []string  `json:"attachments"`
	PostingID       string    `json:"postingId,omitempty"`
	CompanyName     string    `json:"companyName,omitempty"`
	JobTitle        string    `json:"jobTitle,omitempty"`
	Combined        bool      `json:"combined"`
	PageCount       int       `json:"pageCount"`
	SizeBytes       int64     `json:"sizeBytes"`
	DownloadURL     string    `json:"downloadUrl"`
}

func toResponse(rec Record) recordResponse {
	attachments := rec.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return recordResponse{
		ID:              rec.ID,
		CreatedAt:       rec.CreatedAt,
		Filename:        rec.Filename,
		CVFile:          rec.CVFile,
		CoverLetterFile: rec.CoverLetterFile,
		Attachments:     attachments,
		PostingID:       rec.PostingID,
		CompanyName:     rec.CompanyName,
		JobTitle:        rec.JobTitle,
		Combined:        rec.Combined,
		PageCount:       rec.PageCount,
		SizeBytes:       rec.SizeBytes,
		DownloadURL:     "/api/v1/generations/" + rec.ID + "/download",
	}
}
