package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/mtlprog/indexfund/internal/auth"
	"github.com/mtlprog/indexfund/internal/domain"
	"github.com/mtlprog/indexfund/internal/email"
	"github.com/mtlprog/indexfund/internal/store"
)

// Field bounds for registration.
const (
	MinEmailLen    = 4
	MaxEmailLen    = 150
	MaxNameLen     = 150
	MinPasswordLen = 8
	MaxPasswordLen = 30
)

var (
	// ErrNotFound indicates that the user has no profile in the fund store.
	ErrNotFound = errors.New("user not found")
	// ErrPartialWrite indicates that the credential was saved but the profile name was not.
	ErrPartialWrite = errors.New("credential saved but profile was not")
)

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Store defines the key-value operations the user service needs.
type Store interface {
	UserName(ctx context.Context, email string) (string, error)
	UserFundIDs(ctx context.Context, email string) ([]string, error)
	SetUserName(ctx context.Context, email, name string) error
	UserEmails(ctx context.Context) ([]string, error)
}

// Credentials defines the credential operations the user service needs.
type Credentials interface {
	Create(ctx context.Context, username, email, password string) error
	Exists(ctx context.Context, username string) (bool, error)
}

// Registration is a sign-up request.
type Registration struct {
	Email    string
	Name     string
	Password string
}

// AuditReport summarizes a consistency check between the fund store and the credential store.
type AuditReport struct {
	Checked int      `json:"checked"`
	Missing []string `json:"missing"`
}

// Service manages fund users.
type Service struct {
	store Store
	creds Credentials
}

// NewService creates a new user service.
func NewService(store Store, creds Credentials) *Service {
	return &Service{store: store, creds: creds}
}

// Load returns the profile of the user. A user without a stored name does not exist.
func (s *Service) Load(ctx context.Context, addr string) (domain.FundUser, error) {
	addr = email.Normalize(addr)
	name, err := s.store.UserName(ctx, addr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.FundUser{}, ErrNotFound
		}
		return domain.FundUser{}, fmt.Errorf("loading name of %s: %w", addr, err)
	}
	funds, err := s.store.UserFundIDs(ctx, addr)
	if err != nil {
		return domain.FundUser{}, fmt.Errorf("loading funds of %s: %w", addr, err)
	}
	if funds == nil {
		funds = []string{}
	}
	return domain.FundUser{Email: addr, Name: name, Funds: funds}, nil
}

// Validate normalizes the registration and checks the field bounds.
func (r Registration) Validate() (Registration, error) {
	r.Email = email.Normalize(r.Email)
	r.Name = strings.TrimSpace(r.Name)

	if n := utf8.RuneCountInString(r.Email); n < MinEmailLen || n > MaxEmailLen {
		return r, &ValidationError{Field: "email_address", Message: fmt.Sprintf("must be between %d and %d characters", MinEmailLen, MaxEmailLen)}
	}
	if !strings.Contains(r.Email, "@") {
		return r, &ValidationError{Field: "email_address", Message: "must be an email address"}
	}
	if utf8.RuneCountInString(r.Name) > MaxNameLen {
		return r, &ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", MaxNameLen)}
	}
	if n := utf8.RuneCountInString(r.Password); n < MinPasswordLen || n > MaxPasswordLen {
		return r, &ValidationError{Field: "password", Message: fmt.Sprintf("must be between %d and %d characters", MinPasswordLen, MaxPasswordLen)}
	}
	if r.Name == "" {
		r.Name = r.Email
	}
	return r, nil
}

// Register creates the credential for a new user and then stores the profile name.
// The two stores are not transactional: if the name cannot be stored the credential
// remains and ErrPartialWrite is returned.
func (s *Service) Register(ctx context.Context, reg Registration) (domain.FundUser, error) {
	reg, err := reg.Validate()
	if err != nil {
		return domain.FundUser{}, err
	}

	if err := s.creds.Create(ctx, reg.Email, reg.Email, reg.Password); err != nil {
		return domain.FundUser{}, fmt.Errorf("creating credential for %s: %w", reg.Email, err)
	}
	if err := s.store.SetUserName(ctx, reg.Email, reg.Name); err != nil {
		slog.Error("credential created but profile name not stored", "email", reg.Email, "error", err)
		return domain.FundUser{}, fmt.Errorf("%w: %v", ErrPartialWrite, err)
	}
	return domain.FundUser{Email: reg.Email, Name: reg.Name, Funds: []string{}}, nil
}

// Audit checks that every user with a profile in the fund store also has a credential.
func (s *Service) Audit(ctx context.Context) (AuditReport, error) {
	emails, err := s.store.UserEmails(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("listing users: %w", err)
	}

	var missing []string
	for _, addr := range lo.Uniq(emails) {
		ok, err := s.creds.Exists(ctx, addr)
		if err != nil {
			return AuditReport{}, fmt.Errorf("checking credential of %s: %w", addr, err)
		}
		if !ok {
			slog.Warn("user has a profile but no credential", "email", addr)
			missing = append(missing, addr)
		}
	}
	return AuditReport{Checked: len(emails), Missing: lo.Ternary(missing == nil, []string{}, missing)}, nil
}

var _ Credentials = (auth.Repository)(nil)
