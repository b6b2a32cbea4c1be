// Package registry records check-ins. A submission carries proof of
// presence (photo, coordinates, free-text context) plus a gate pass from a
// daily-code validation; without a pass for the current date nothing is
// recorded. Repeated submissions are kept as separate records on purpose:
// the registry is evidence, not a dedup table.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/model"
	"rollcall/internal/storage"
)

var (
	// ErrIncompleteSubmission marks a check-in missing a required field.
	// The wrapped message names the field.
	ErrIncompleteSubmission = errors.New("incomplete submission")
	// ErrPassInvalid marks a submission whose gate pass is absent, bad or
	// issued for a different day.
	ErrPassInvalid = errors.New("gate pass missing or not valid for today")
	// ErrRecordNotFound marks lookups of unknown record IDs.
	ErrRecordNotFound = errors.New("attendance record not found")
)

// PassVerifier checks a gate pass and reports the date it unlocks.
type PassVerifier interface {
	Verify(token string) (string, error)
}

// Submission is a member's check-in payload.
type Submission struct {
	Position    string
	Photo       string
	Description string
	Location    model.Location
	Pass        string
}

// Service validates and stores check-ins.
type Service struct {
	store    storage.RecordStore
	verifier PassVerifier
	loc      *time.Location
	now      func() time.Time
}

// New creates the service. loc must match the daily-code service so "today"
// means the same date on both sides of the gate.
func New(store storage.RecordStore, verifier PassVerifier, loc *time.Location) *Service {
	return &Service{store: store, verifier: verifier, loc: loc, now: time.Now}
}

// Submit validates the payload and gate pass, then records the check-in
// stamped with the submitting user and the current date and time. Field
// values are stored exactly as submitted; the stored record starts with an
// empty comment list.
func (s *Service) Submit(ctx context.Context, user model.User, sub Submission) (model.AttendanceRecord, error) {
	if err := s.validate(sub); err != nil {
		return model.AttendanceRecord{}, err
	}

	passDate, err := s.verifier.Verify(sub.Pass)
	if err != nil {
		return model.AttendanceRecord{}, ErrPassInvalid
	}
	at := s.now().In(s.loc)
	if passDate != at.Format(model.DateLayout) {
		return model.AttendanceRecord{}, ErrPassInvalid
	}

	rec := model.AttendanceRecord{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		UserName:    user.Name,
		Date:        at.Format(model.DateLayout),
		Time:        at.Format(model.TimeLayout),
		Position:    sub.Position,
		Photo:       sub.Photo,
		Description: sub.Description,
		Location:    sub.Location,
		Comments:    []model.Comment{},
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.InsertRecord(ctx, rec); err != nil {
		return model.AttendanceRecord{}, err
	}
	return rec, nil
}

func (s *Service) validate(sub Submission) error {
	if strings.TrimSpace(sub.Position) == "" {
		return fmt.Errorf("%w: position", ErrIncompleteSubmission)
	}
	if strings.TrimSpace(sub.Photo) == "" {
		return fmt.Errorf("%w: photo", ErrIncompleteSubmission)
	}
	if strings.TrimSpace(sub.Description) == "" {
		return fmt.Errorf("%w: description", ErrIncompleteSubmission)
	}
	if !finite(sub.Location.Lat) || !finite(sub.Location.Lng) {
		return fmt.Errorf("%w: location", ErrIncompleteSubmission)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Get returns a single record by ID.
func (s *Service) Get(ctx context.Context, id string) (model.AttendanceRecord, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.AttendanceRecord{}, ErrRecordNotFound
		}
		return model.AttendanceRecord{}, err
	}
	return rec, nil
}

// List returns every check-in, newest first.
func (s *Service) List(ctx context.Context) ([]model.AttendanceRecord, error) {
	return s.store.ListRecords(ctx)
}

// ListForUser returns one member's check-ins, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]model.AttendanceRecord, error) {
	all, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	own := make([]model.AttendanceRecord, 0, len(all))
	for _, rec := range all {
		if rec.UserID == userID {
			own = append(own, rec)
		}
	}
	return own, nil
}
