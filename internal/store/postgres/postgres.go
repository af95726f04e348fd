package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS document_journal (
	variant         text        NOT NULL,
	document_number text        NOT NULL,
	customer_name   text        NOT NULL DEFAULT '',
	grand_total     numeric(12,2) NOT NULL,
	created_at      timestamptz NOT NULL,
	payload         jsonb       NOT NULL,
	recorded_at     timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (variant, document_number)
);
CREATE INDEX IF NOT EXISTS document_journal_created_idx ON document_journal (created_at DESC);
`

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// EnsureSchema creates the journal table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveDocument(ctx context.Context, doc domain.ConfirmedDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO document_journal (variant, document_number, customer_name, grand_total, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, string(doc.Variant), doc.DocumentNumber, doc.Customer.Name, doc.Totals.GrandTotal.StringFixed(2), doc.CreatedAt.UTC(), payload)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) FindDocument(ctx context.Context, variant domain.Variant, number string) (*domain.ConfirmedDocument, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload
		FROM document_journal
		WHERE variant = $1 AND document_number = $2
	`, string(variant), number).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var doc domain.ConfirmedDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, filter store.ListFilter) ([]domain.ConfirmedDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM document_journal
		WHERE ($1 = '' OR variant = $1)
		ORDER BY created_at DESC, document_number DESC
		LIMIT $2
	`, string(filter.Variant), store.NormalizeLimit(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]domain.ConfirmedDocument, 0, 32)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var doc domain.ConfirmedDocument
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
