// Package audit maintains the comment trail on attendance records. Comments
// are append-only annotations by admins; nothing edits or removes one once
// it is in the trail.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/model"
	"rollcall/internal/storage"
)

var (
	// ErrRecordNotFound marks comments aimed at unknown records.
	ErrRecordNotFound = errors.New("attendance record not found")
	// ErrEmptyComment rejects blank or whitespace-only comment text.
	ErrEmptyComment = errors.New("comment text is empty")
)

// Service appends to and reads comment trails.
type Service struct {
	store storage.RecordStore
	now   func() time.Time
}

// New creates the service.
func New(store storage.RecordStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Append adds a comment to a record's trail and returns the full trail
// including the new entry. The append itself is a single store operation,
// so two admins commenting at once both land; neither overwrites the other.
func (s *Service) Append(ctx context.Context, recordID, adminID, adminName, text string) ([]model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	c := model.Comment{
		ID:        uuid.NewString(),
		AdminID:   adminID,
		AdminName: adminName,
		Text:      text,
		At:        s.now().UTC(),
	}
	trail, err := s.store.AppendComment(ctx, recordID, c)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return trail, nil
}

// Trail returns a record's comments in append order.
func (s *Service) Trail(ctx context.Context, recordID string) ([]model.Comment, error) {
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec.Comments, nil
}
