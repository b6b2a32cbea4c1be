// Package storage abstracts the persistent store behind narrow, typed
// interfaces so the services stay testable and the backing service can be
// swapped (in-memory for dev/tests, Postgres for real deployments) without
// touching business code.
package storage

import (
	"context"
	"errors"
	"fmt"

	"rollcall/internal/model"
)

// Sentinel errors every implementation maps its failures onto. Callers
// match with errors.Is; anything unexpected from the backend is wrapped in
// ErrStore together with the backend's diagnostic.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
	ErrStore     = errors.New("store failure")
)

// UserStore persists directory users keyed by their organizational id.
type UserStore interface {
	InsertUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	UpdateUser(ctx context.Context, u model.User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]model.User, error)
}

// TokenStore persists daily codes. Dates are unique: CreateDailyToken
// returns ErrDuplicate when a token for the date already exists, so a
// get-or-create loser can re-fetch the winner instead of erroring.
type TokenStore interface {
	GetDailyToken(ctx context.Context, date string) (model.DailyToken, error)
	CreateDailyToken(ctx context.Context, t model.DailyToken) error
}

// RecordStore persists attendance records. AppendComment must be an atomic
// append at the store layer, never a read-modify-write replacement of the
// whole comment list; two concurrent appends cannot lose one another.
type RecordStore interface {
	InsertRecord(ctx context.Context, r model.AttendanceRecord) error
	GetRecord(ctx context.Context, id string) (model.AttendanceRecord, error)
	// ListRecords returns all records, most recently created first.
	ListRecords(ctx context.Context) ([]model.AttendanceRecord, error)
	// AppendComment appends c to the record's comment list and returns the
	// full updated list. ErrNotFound when the record does not exist.
	AppendComment(ctx context.Context, recordID string, c model.Comment) ([]model.Comment, error)
}

// Store is the full surface the application wires at startup.
type Store interface {
	UserStore
	TokenStore
	RecordStore
}

// wrap tags an unexpected backend error as a generic store failure while
// keeping the diagnostic text.
func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}
