package fund

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/mtlprog/indexfund/internal/auth"
	"github.com/mtlprog/indexfund/internal/domain"
	"github.com/mtlprog/indexfund/internal/email"
	"github.com/mtlprog/indexfund/internal/store"
)

var (
	// ErrNotFound indicates that no fund is stored under the id.
	ErrNotFound = errors.New("fund not found")
	// ErrPermission indicates that the caller may not manage the fund as the requested manager.
	ErrPermission = errors.New("permission denied")
	// ErrManagerConflict indicates that the fund already belongs to another manager.
	ErrManagerConflict = errors.New("fund has a different manager")
)

// Store defines the key-value operations the fund service needs.
type Store interface {
	FundManager(ctx context.Context, fundID string) (string, error)
	FundInvestors(ctx context.Context, fundID string) ([]string, error)
	FundPortfolio(ctx context.Context, fundID string) (domain.FundPortfolio, error)
	SaveFund(ctx context.Context, s domain.IndexFundSnapshot) error
}

// Service loads and saves index funds.
type Service struct {
	store Store
}

// NewService creates a new fund service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Load assembles the snapshot of a fund from the store. A fund without a manager does not exist.
func (s *Service) Load(ctx context.Context, fundID string) (domain.IndexFundSnapshot, error) {
	fundID = domain.NormalizeFundID(fundID)

	manager, err := s.store.FundManager(ctx, fundID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.IndexFundSnapshot{}, ErrNotFound
		}
		return domain.IndexFundSnapshot{}, fmt.Errorf("loading manager of %s: %w", fundID, err)
	}
	investors, err := s.store.FundInvestors(ctx, fundID)
	if err != nil {
		return domain.IndexFundSnapshot{}, fmt.Errorf("loading investors of %s: %w", fundID, err)
	}
	portfolio, err := s.store.FundPortfolio(ctx, fundID)
	if err != nil {
		return domain.IndexFundSnapshot{}, fmt.Errorf("loading portfolio of %s: %w", fundID, err)
	}

	return domain.IndexFundSnapshot{
		FundID:         fundID,
		ManagerEmail:   manager,
		InvestorEmails: orEmpty(investors),
		Portfolio:      portfolio,
	}, nil
}

// Save creates or updates a fund on behalf of caller and returns what was stored.
// Only the manager (or a superuser) may save a fund, and a fund's manager never changes here.
func (s *Service) Save(ctx context.Context, caller auth.Identity, snap domain.IndexFundSnapshot) (domain.IndexFundSnapshot, error) {
	snap.FundID = domain.NormalizeFundID(snap.FundID)
	snap.ManagerEmail = email.Normalize(snap.ManagerEmail)
	if snap.FundID == "" || snap.ManagerEmail == "" {
		return domain.IndexFundSnapshot{}, fmt.Errorf("%w: fund_id and manager_email are required", domain.ErrMalformed)
	}
	if !caller.CanActAs(snap.ManagerEmail) {
		return domain.IndexFundSnapshot{}, ErrPermission
	}

	current, err := s.store.FundManager(ctx, snap.FundID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return domain.IndexFundSnapshot{}, fmt.Errorf("loading manager of %s: %w", snap.FundID, err)
	case current != snap.ManagerEmail:
		return domain.IndexFundSnapshot{}, ErrManagerConflict
	}

	snap.InvestorEmails = CleanInvestors(snap.ManagerEmail, snap.InvestorEmails)

	if err := s.store.SaveFund(ctx, snap); err != nil {
		if errors.Is(err, store.ErrManagerMismatch) {
			return domain.IndexFundSnapshot{}, ErrManagerConflict
		}
		return domain.IndexFundSnapshot{}, fmt.Errorf("saving fund %s: %w", snap.FundID, err)
	}
	return snap, nil
}

// CleanInvestors normalizes investor emails, drops blanks and duplicates
// (keeping first occurrences) and removes the manager.
func CleanInvestors(manager string, investors []string) []string {
	cleaned := lo.Without(lo.Uniq(email.NormalizeAll(investors)), email.Normalize(manager))
	return orEmpty(cleaned)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
