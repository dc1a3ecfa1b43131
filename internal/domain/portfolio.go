package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// FundPortfolio is the ordered list of token allocations a fund desires.
// Duplicate tokens are allowed and no constraint is placed on the weights.
type FundPortfolio struct {
	Tokens []TokenAllocation
}

// ParseFundPortfolio builds a portfolio from a decoded record or from the JSON text of one.
// Entries of tokens that fail to parse are skipped and logged; the rest keep their order.
func ParseFundPortfolio(v any) (FundPortfolio, error) {
	var rec Record
	switch x := v.(type) {
	case Record:
		rec = x
	case string:
		decoded, err := DecodeRecord([]byte(x))
		if err != nil {
			return FundPortfolio{}, fmt.Errorf("decoding portfolio: %w", err)
		}
		rec = decoded
	case []byte:
		decoded, err := DecodeRecord(x)
		if err != nil {
			return FundPortfolio{}, fmt.Errorf("decoding portfolio: %w", err)
		}
		rec = decoded
	default:
		return FundPortfolio{}, fmt.Errorf("%w: portfolio must be an object, got %T", ErrMalformed, v)
	}

	var entries []any
	switch list := rec["tokens"].(type) {
	case nil:
	case []any:
		entries = list
	case []Record:
		for _, r := range list {
			entries = append(entries, r)
		}
	default:
		return FundPortfolio{}, fmt.Errorf("%w: tokens must be a list, got %T", ErrMalformed, list)
	}

	tokens := make([]TokenAllocation, 0, len(entries))
	for i, entry := range entries {
		entryRec, ok := entry.(Record)
		if !ok {
			slog.Warn("skipping portfolio token that is not an object", "index", i, "type", fmt.Sprintf("%T", entry))
			continue
		}
		alloc, err := ParseTokenAllocation(entryRec)
		if err != nil {
			slog.Warn("skipping malformed portfolio token", "index", i, "error", err)
			continue
		}
		tokens = append(tokens, alloc)
	}
	return FundPortfolio{Tokens: tokens}, nil
}

// Record returns the plain record form of the portfolio.
func (p FundPortfolio) Record() Record {
	tokens := make([]any, 0, len(p.Tokens))
	for _, t := range p.Tokens {
		tokens = append(tokens, t.Record())
	}
	return Record{"tokens": tokens}
}

func (p FundPortfolio) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Record())
}

// MarshalBinary returns the JSON text stored for a fund's portfolio.
func (p FundPortfolio) MarshalBinary() ([]byte, error) {
	return p.MarshalJSON()
}
