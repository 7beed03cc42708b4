package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// storeRowID is the id of the single row holding the collection.
const storeRowID = 1

// PGStore keeps the collection as one jsonb value in the patient_store
// table, so the whole-document semantics match FileStore.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS patient_store (
			id         INTEGER PRIMARY KEY,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return &StorageError{Op: "init", Err: fmt.Errorf("create patient_store: %w", err)}
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO patient_store (id, doc) VALUES ($1, '[]'::jsonb) ON CONFLICT (id) DO NOTHING`,
		storeRowID)
	if err != nil {
		return &StorageError{Op: "init", Err: fmt.Errorf("seed patient_store: %w", err)}
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context) (Collection, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM patient_store WHERE id = $1`, storeRowID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &StorageError{Op: "load", Err: errors.New("patient_store is not initialized")}
	}
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}
	var c Collection
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, &StorageError{Op: "load", Err: fmt.Errorf("parse doc: %w", err)}
	}
	return c, nil
}

func (s *PGStore) Save(ctx context.Context, c Collection) error {
	data, err := marshalCollection(c)
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &StorageError{Op: "save", Err: fmt.Errorf("begin: %w", err)}
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE patient_store SET doc = $2::jsonb, updated_at = NOW() WHERE id = $1`,
		storeRowID, string(data))
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &StorageError{Op: "save", Err: errors.New("patient_store is not initialized")}
	}
	if err := tx.Commit(ctx); err != nil {
		return &StorageError{Op: "save", Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}
