package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// TokenAllocation is one token's desired portfolio weight together with its price targets.
type TokenAllocation struct {
	Token string
	// PortfolioPct is the fractional weight of the token within the portfolio.
	PortfolioPct decimal.Decimal
	// BuyTarget is the price above which no further buying occurs.
	BuyTarget decimal.Decimal
	// SellTarget is the price below which no further selling occurs.
	SellTarget decimal.Decimal
}

// ParseTokenAllocation builds a TokenAllocation from a decoded record.
// token (or id), buy_target and sell_target are required; portfolio_pct defaults to 1.
func ParseTokenAllocation(rec Record) (TokenAllocation, error) {
	token, err := requiredString(rec, "token", "id")
	if err != nil {
		return TokenAllocation{}, err
	}
	buy, err := requiredDecimal(rec, "buy_target")
	if err != nil {
		return TokenAllocation{}, err
	}
	sell, err := requiredDecimal(rec, "sell_target")
	if err != nil {
		return TokenAllocation{}, err
	}

	pct := decimal.NewFromInt(1)
	if _, ok := lookup(rec, "portfolio_pct"); ok {
		if pct, err = requiredDecimal(rec, "portfolio_pct"); err != nil {
			return TokenAllocation{}, err
		}
	}

	return TokenAllocation{
		Token:        token,
		PortfolioPct: pct,
		BuyTarget:    buy,
		SellTarget:   sell,
	}, nil
}

// Record returns the plain record form of the allocation.
func (t TokenAllocation) Record() Record {
	return Record{
		"token":         t.Token,
		"portfolio_pct": number(t.PortfolioPct),
		"buy_target":    number(t.BuyTarget),
		"sell_target":   number(t.SellTarget),
	}
}

// Equal reports whether two allocations hold the same token and numerically equal values.
func (t TokenAllocation) Equal(o TokenAllocation) bool {
	return t.Token == o.Token &&
		t.PortfolioPct.Equal(o.PortfolioPct) &&
		t.BuyTarget.Equal(o.BuyTarget) &&
		t.SellTarget.Equal(o.SellTarget)
}

func (t TokenAllocation) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Record())
}
