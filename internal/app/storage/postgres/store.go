package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/novastack/service_layer/internal/app/storage"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.StartupStore = (*Store)(nil)
var _ storage.InvestmentStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// mapError translates driver errors into storage sentinel errors.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %s: %w", what, pqErr.Constraint, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func requireAffected(result sql.Result, what string) error {
	if rows, _ := result.RowsAffected(); rows == 0 {
		return mapError(sql.ErrNoRows, what)
	}
	return nil
}

// marshalJSONB encodes v for a JSONB column. Nil slices become [].
func marshalJSONB(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte("[]"), nil
	}
	return b, nil
}

// marshalNullableJSONB encodes v, keeping SQL NULL for nil pointers.
func marshalNullableJSONB(v interface{}, isNil bool) (interface{}, error) {
	if isNil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalJSONB(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}
