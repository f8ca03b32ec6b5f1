package generations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

const recordColumns = `id, created_at, filename, storage_key, cv_file, cover_letter_file, attachments, posting_id, company_name, job_title, combined, page_count, size_bytes`

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO generations (` + recordColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12, $13)`
	attachments, err := encodeAttachments(rec.Attachments)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.CreatedAt,
		rec.Filename,
		rec.StorageKey,
		rec.CVFile,
		rec.CoverLetterFile,
		attachments,
		rec.PostingID,
		rec.CompanyName,
		rec.JobTitle,
		rec.Combined,
		rec.PageCount,
		rec.SizeBytes,
	)
	return err
}

// Get returns a record by id.
func (r *PGRepo) Get(ctx context.Context, id string) (Record, error) {
	const query = `
SELECT ` + recordColumns + `
FROM generations
WHERE id = $1
LIMIT 1`
	var rec Record
	var attachments []byte
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.CreatedAt,
		&rec.Filename,
		&rec.StorageKey,
		&rec.CVFile,
		&rec.CoverLetterFile,
		&attachments,
		&rec.PostingID,
		&rec.CompanyName,
		&rec.JobTitle,
		&rec.Combined,
		&rec.PageCount,
		&rec.SizeBytes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if rec.Attachments, err = decodeAttachments(attachments); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns records ordered newest first.
func (r *PGRepo) List(ctx context.Context, limit int) ([]Record, error) {
	const query = `
SELECT ` + recordColumns + `
FROM generations
ORDER BY created_at DESC, id DESC
LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var attachments []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.CreatedAt,
			&rec.Filename,
			&rec.StorageKey,
			&rec.CVFile,
			&rec.CoverLetterFile,
			&attachments,
			&rec.PostingID,
			&rec.CompanyName,
			&rec.JobTitle,
			&rec.Combined,
			&rec.PageCount,
			&rec.SizeBytes,
		); err != nil {
			return nil, err
		}
		if rec.Attachments, err = decodeAttachments(attachments); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a record by id.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM generations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Clear removes every record.
func (r *PGRepo) Clear(ctx context.Context) (int, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM generations`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func encodeAttachments(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeAttachments(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	return names, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
