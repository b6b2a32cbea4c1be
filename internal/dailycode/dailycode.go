// Package dailycode owns the attendance code of the day: one 4-digit code
// per calendar date, created lazily on first access and immutable until
// midnight. Successful validation converts the shared code into a personal
// gate pass for the rest of the day.
package dailycode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"rollcall/internal/gatepass"
	"rollcall/internal/model"
	"rollcall/internal/storage"
)

// ErrCodeMismatch is returned when a submitted code is not today's code.
var ErrCodeMismatch = errors.New("code does not match today's code")

// Service hands out and validates daily codes.
type Service struct {
	store  storage.TokenStore
	signer *gatepass.Signer
	loc    *time.Location
	now    func() time.Time
}

// New creates the service. loc decides when "today" rolls over.
func New(store storage.TokenStore, signer *gatepass.Signer, loc *time.Location) *Service {
	return &Service{store: store, signer: signer, loc: loc, now: time.Now}
}

// TodayCode returns the code for the current date, generating and storing
// it if this is the first access of the day. Concurrent first accesses all
// converge on the single stored code: the store arbitrates, losers re-read.
func (s *Service) TodayCode(ctx context.Context) (model.DailyToken, error) {
	date := s.today()

	tok, err := s.store.GetDailyToken(ctx, date)
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.DailyToken{}, err
	}

	code, err := generateCode()
	if err != nil {
		return model.DailyToken{}, fmt.Errorf("generate code: %w", err)
	}
	tok = model.DailyToken{Date: date, Code: code}
	switch err := s.store.CreateDailyToken(ctx, tok); {
	case err == nil:
		return tok, nil
	case errors.Is(err, storage.ErrDuplicate):
		// Another request created today's token first; ours is discarded.
		return s.store.GetDailyToken(ctx, date)
	default:
		return model.DailyToken{}, err
	}
}

// Validate checks a submitted code against today's and, on a match, issues
// a gate pass that unlocks check-in submission until midnight.
func (s *Service) Validate(ctx context.Context, candidate string) (string, error) {
	tok, err := s.TodayCode(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(candidate) != tok.Code {
		return "", ErrCodeMismatch
	}
	pass, err := s.signer.Issue(tok.Date, s.endOfDay())
	if err != nil {
		return "", fmt.Errorf("issue gate pass: %w", err)
	}
	return pass, nil
}

// Today returns the current calendar date in the service's timezone.
func (s *Service) Today() string {
	return s.today()
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(model.DateLayout)
}

// endOfDay is the next local midnight: the moment the current code and any
// passes issued for it stop being valid.
func (s *Service) endOfDay() time.Time {
	t := s.now().In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, s.loc)
}

// generateCode draws a uniform 4-digit code, 1000 through 9999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}
