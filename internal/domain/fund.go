package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mtlprog/indexfund/internal/email"
)

// IndexFundSnapshot is the state of one fund: its manager, investors and portfolio.
type IndexFundSnapshot struct {
	FundID         string
	ManagerEmail   string
	InvestorEmails []string
	Portfolio      FundPortfolio
}

// NormalizeFundID returns the canonical store key for a fund id.
func NormalizeFundID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ParseIndexFundSnapshot builds a snapshot from a decoded record.
// fund_id (or id) and manager_email are required. A portfolio that fails to parse is replaced by an empty one.
func ParseIndexFundSnapshot(rec Record) (IndexFundSnapshot, error) {
	fundID, err := requiredString(rec, "fund_id", "id")
	if err != nil {
		return IndexFundSnapshot{}, err
	}
	manager, err := requiredString(rec, "manager_email")
	if err != nil {
		return IndexFundSnapshot{}, err
	}
	investors, err := optionalStrings(rec, "investor_emails")
	if err != nil {
		return IndexFundSnapshot{}, err
	}

	var portfolio FundPortfolio
	if raw, ok := lookup(rec, "portfolio"); ok {
		if portfolio, err = ParseFundPortfolio(raw); err != nil {
			slog.Warn("using empty portfolio", "fund_id", fundID, "error", err)
			portfolio = FundPortfolio{}
		}
	}

	return IndexFundSnapshot{
		FundID:         NormalizeFundID(fundID),
		ManagerEmail:   email.Normalize(manager),
		InvestorEmails: orEmpty(investors),
		Portfolio:      portfolio,
	}, nil
}

// Record returns the plain record form of the snapshot.
func (s IndexFundSnapshot) Record() Record {
	return Record{
		"fund_id":         s.FundID,
		"manager_email":   s.ManagerEmail,
		"investor_emails": orEmpty(s.InvestorEmails),
		"portfolio":       s.Portfolio.Record(),
	}
}

func (s IndexFundSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Record())
}

func (s IndexFundSnapshot) String() string {
	return fmt.Sprintf("fund %s managed by %s (%d investors, %d tokens)",
		s.FundID, s.ManagerEmail, len(s.InvestorEmails), len(s.Portfolio.Tokens))
}
