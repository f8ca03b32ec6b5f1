package generations

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"applique-backend/internal/shared/metrics"
	"applique-backend/internal/shared/storage/object"
	"applique-backend/internal/shared/telemetry"
)

const (
	// DefaultLimit is used when List is called without a positive limit.
	DefaultLimit = 50
	// MaxLimit caps a single List call.
	MaxLimit = 200
)

// Service records and serves generation history.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Now   func() time.Time
}

// Record assigns an id and timestamp when missing and persists rec. Any
// persistence failure is returned as a *LedgerError.
func (s *Service) Record(ctx context.Context, rec Record) (Record, error) {
	if strings.TrimSpace(rec.Filename) == "" || strings.TrimSpace(rec.StorageKey) == "" {
		return Record{}, ErrInvalidInput
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if err := s.Repo.Create(ctx, rec); err != nil {
		metrics.IncLedgerFailed()
		telemetry.Error("ledger.record_failed", map[string]any{
			"generation_id": rec.ID,
			"filename":      rec.Filename,
			"err":           err,
		})
		return Record{}, &LedgerError{Op: "record", Err: err}
	}
	telemetry.Info("ledger.recorded", map[string]any{
		"generation_id": rec.ID,
		"filename":      rec.Filename,
		"combined":      rec.Combined,
	})
	return rec, nil
}

// List returns history newest first, clamping limit to [1, MaxLimit].
func (s *Service) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	records, err := s.Repo.List(ctx, limit)
	if err != nil {
		return nil, &LedgerError{Op: "list", Err: err}
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Get returns a record by id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if strings.TrimSpace(id) == "" {
		return Record{}, ErrInvalidInput
	}
	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, &LedgerError{Op: "get", Err: err}
	}
	return rec, nil
}

// Open returns the record and a reader over its generated file.
func (s *Service) Open(ctx context.Context, id string) (Record, io.ReadCloser, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, nil, err
	}
	if s.Store == nil {
		return Record{}, nil, errors.New("object store not configured")
	}
	rc, err := s.Store.Open(ctx, rec.StorageKey)
	if err != nil {
		return Record{}, nil, err
	}
	return rec, rc, nil
}

// Delete removes one record. The generated file is kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &LedgerError{Op: "delete", Err: err}
	}
	telemetry.Info("ledger.deleted", map[string]any{"generation_id": id})
	return nil
}

// Clear removes every record. Generated files are kept.
func (s *Service) Clear(ctx context.Context) (int, error) {
	n, err := s.Repo.Clear(ctx)
	if err != nil {
		return 0, &LedgerError{Op: "clear", Err: err}
	}
	telemetry.Info("ledger.cleared", map[string]any{"removed": n})
	return n, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
