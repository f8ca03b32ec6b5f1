package generations

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// sqliteTime keeps created_at fixed-width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepo implements Repo on an embedded SQLite database.
type SQLiteRepo struct {
	DB *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a record.
func (r *SQLiteRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO generations (` + recordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	attachments, err := encodeAttachments(rec.Attachments)
	if err != nil {
		return err
	}
	combined := 0
	if rec.Combined {
		combined = 1
	}
	_, err = r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.CreatedAt.UTC().Format(sqliteTime),
		rec.Filename,
		rec.StorageKey,
		rec.CVFile,
		rec.CoverLetterFile,
		attachments,
		rec.PostingID,
		rec.CompanyName,
		rec.JobTitle,
		combined,
		rec.PageCount,
		rec.SizeBytes,
	)
	return err
}

// Get returns a record by id.
func (r *SQLiteRepo) Get(ctx context.Context, id string) (Record, error) {
	const query = `SELECT ` + recordColumns + ` FROM generations WHERE id = ? LIMIT 1`
	rec, err := scanSQLite(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns records ordered newest first.
func (r *SQLiteRepo) List(ctx context.Context, limit int) ([]Record, error) {
	const query = `SELECT ` + recordColumns + ` FROM generations ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a record by id.
func (r *SQLiteRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM generations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Clear removes every record.
func (r *SQLiteRepo) Clear(ctx context.Context) (int, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM generations`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanSQLite(row rowScanner) (Record, error) {
	var (
		rec         Record
		createdAt   string
		attachments string
		combined    int
	)
	if err := row.Scan(
		&rec.ID,
		&createdAt,
		&rec.Filename,
		&rec.StorageKey,
		&rec.CVFile,
		&rec.CoverLetterFile,
		&attachments,
		&rec.PostingID,
		&rec.CompanyName,
		&rec.JobTitle,
		&combined,
		&rec.PageCount,
		&rec.SizeBytes,
	); err != nil {
		return Record{}, err
	}
	ts, err := time.Parse(sqliteTime, createdAt)
	if err != nil {
		return Record{}, err
	}
	rec.CreatedAt = ts
	rec.Combined = combined != 0
	if rec.Attachments, err = decodeAttachments([]byte(attachments)); err != nil {
		return Record{}, err
	}
	return rec, nil
}

var _ Repo = (*SQLiteRepo)(nil)
