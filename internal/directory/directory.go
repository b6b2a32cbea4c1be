// Package directory manages the user roster: credential checks, admin
// provisioning with generated starter passwords, bulk imports and
// self-service password changes.
package directory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"rollcall/internal/model"
	"rollcall/internal/storage"
)

// MinPasswordLen is the shortest password ChangePassword accepts.
const MinPasswordLen = 4

// passwordAlphabet feeds generated starter passwords. No ambiguous
// characters are excluded on purpose: passwords are meant to be changed
// on first use.
const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratedPasswordLen is the length of provisioned starter passwords.
const GeneratedPasswordLen = 6

var (
	// ErrInvalidCredentials is returned on any login failure: unknown ID,
	// wrong password or role mismatch. Callers get no hint which one.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateID rejects provisioning an ID that already exists.
	ErrDuplicateID = errors.New("user id already exists")
	// ErrUserNotFound marks operations against an unknown user ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrWrongOldPassword rejects a password change with a bad current password.
	ErrWrongOldPassword = errors.New("old password does not match")
	// ErrPasswordTooShort rejects new passwords below MinPasswordLen.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	// ErrConfirmMismatch rejects a password change whose confirmation differs.
	ErrConfirmMismatch = errors.New("password confirmation does not match")
	// ErrMissingField rejects provisioning rows without an ID or name.
	ErrMissingField = errors.New("missing required field")
)

// Service exposes roster operations over a UserStore.
type Service struct {
	store storage.UserStore
}

// New creates a directory service.
func New(store storage.UserStore) *Service {
	return &Service{store: store}
}

// Authenticate checks an ID/password pair against the roster and, when role
// is non-empty, requires the stored role to match. Every failure mode
// collapses to ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, id, password string, role model.Role) (model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, err
	}
	if u.Password != password {
		return model.User{}, ErrInvalidCredentials
	}
	if role != "" && u.Role != role {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Provision registers a new user with a generated starter password and
// returns the stored user, password included, so the caller can hand it
// to the person once.
func (s *Service) Provision(ctx context.Context, id, name string, role model.Role) (model.User, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return model.User{}, fmt.Errorf("%w: id", ErrMissingField)
	}
	if name == "" {
		return model.User{}, fmt.Errorf("%w: name", ErrMissingField)
	}
	if role == "" {
		role = model.RoleMember
	}
	if !role.Valid() {
		return model.User{}, fmt.Errorf("%w: role %q", ErrMissingField, role)
	}

	password, err := generatePassword(GeneratedPasswordLen)
	if err != nil {
		return model.User{}, fmt.Errorf("generate password: %w", err)
	}
	u := model.User{ID: id, Name: name, Password: password, Role: role}
	if err := s.store.InsertUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return model.User{}, ErrDuplicateID
		}
		return model.User{}, err
	}
	return u, nil
}

// ProvisionRow is one entry of a bulk import.
type ProvisionRow struct {
	ID   string
	Name string
	Role model.Role
}

// SkippedRow reports why a bulk-import row was not created.
type SkippedRow struct {
	Row    ProvisionRow
	Reason string
}

// BulkProvision registers many users in one pass. A row that fails to
// provision (duplicate ID, bad fields, store failure) is skipped and
// reported; the remaining rows still run.
func (s *Service) BulkProvision(ctx context.Context, rows []ProvisionRow) ([]model.User, []SkippedRow, error) {
	var created []model.User
	var skipped []SkippedRow
	for _, row := range rows {
		u, err := s.Provision(ctx, row.ID, row.Name, row.Role)
		if err != nil {
			if errors.Is(err, ErrDuplicateID) || errors.Is(err, ErrMissingField) || errors.Is(err, storage.ErrStore) {
				skipped = append(skipped, SkippedRow{Row: row, Reason: err.Error()})
				continue
			}
			return created, skipped, err
		}
		created = append(created, u)
	}
	return created, skipped, nil
}

// ChangePassword replaces a user's password. The new password's length and
// confirmation are checked before the old password is compared, so a request
// failing both reports the local problem.
func (s *Service) ChangePassword(ctx context.Context, id, oldPassword, newPassword, confirm string) error {
	if len(newPassword) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	if newPassword != confirm {
		return ErrConfirmMismatch
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if u.Password != oldPassword {
		return ErrWrongOldPassword
	}
	u.Password = newPassword
	return s.store.UpdateUser(ctx, u)
}

// Remove deletes a user from the roster. Attendance records they already
// produced are kept; history is not rewritten.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// Get looks a user up by ID.
func (s *Service) Get(ctx context.Context, id string) (model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

// List returns the full roster.
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	return s.store.ListUsers(ctx)
}

func generatePassword(n int) (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = passwordAlphabet[idx.Int64()]
	}
	return string(b), nil
}
