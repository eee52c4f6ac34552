package pgstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/sqlc-dev/pqtype"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type SessionDocument struct {
	Key       string                `json:"key"`
	Fields    pqtype.NullRawMessage `json:"fields"`
	UpdatedAt time.Time             `json:"updated_at"`
}

const createSessionDocuments = `-- name: CreateSessionDocuments :exec
CREATE TABLE IF NOT EXISTS session_documents (
    key        TEXT PRIMARY KEY,
    fields     JSONB,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)
`

func (q *Queries) CreateSessionDocuments(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, createSessionDocuments)
	return err
}

const getSessionDocument = `-- name: GetSessionDocument :one
SELECT key, fields, updated_at FROM session_documents
WHERE key = $1
`

func (q *Queries) GetSessionDocument(ctx context.Context, key string) (SessionDocument, error) {
	row := q.db.QueryRowContext(ctx, getSessionDocument, key)
	var i SessionDocument
	err := row.Scan(&i.Key, &i.Fields, &i.UpdatedAt)
	return i, err
}

const upsertSessionDocument = `-- name: UpsertSessionDocument :one
INSERT INTO session_documents (key, fields, updated_at)
VALUES ($1, $2, clock_timestamp())
ON CONFLICT (key) DO UPDATE
SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at
RETURNING key, fields, updated_at
`

type UpsertSessionDocumentParams struct {
	Key    string                `json:"key"`
	Fields pqtype.NullRawMessage `json:"fields"`
}

func (q *Queries) UpsertSessionDocument(ctx context.Context, arg UpsertSessionDocumentParams) (SessionDocument, error) {
	row := q.db.QueryRowContext(ctx, upsertSessionDocument, arg.Key, arg.Fields)
	var i SessionDocument
	err := row.Scan(&i.Key, &i.Fields, &i.UpdatedAt)
	return i, err
}

const notifySessionDocument = `-- name: NotifySessionDocument :exec
SELECT pg_notify($1::text, $2::text)
`

type NotifySessionDocumentParams struct {
	Channel string `json:"channel"`
	Key     string `json:"key"`
}

func (q *Queries) NotifySessionDocument(ctx context.Context, arg NotifySessionDocumentParams) error {
	_, err := q.db.ExecContext(ctx, notifySessionDocument, arg.Channel, arg.Key)
	return err
}
