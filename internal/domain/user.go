package domain

import (
	"encoding/json"

	"github.com/mtlprog/indexfund/internal/email"
)

// FundUser is a user's profile in the fund store.
type FundUser struct {
	Email string
	// Name is a display name and falls back to Email.
	Name string
	// Funds lists the ids of funds the user manages or invests in.
	Funds []string
}

// ParseFundUser builds a FundUser from a decoded record. email is required and is normalized.
func ParseFundUser(rec Record) (FundUser, error) {
	raw, err := requiredString(rec, "email")
	if err != nil {
		return FundUser{}, err
	}
	addr := email.Normalize(raw)
	name := addr
	if v, ok := lookup(rec, "name"); ok {
		if s, ok := v.(string); ok && s != "" {
			name = s
		}
	}
	funds, err := optionalStrings(rec, "funds")
	if err != nil {
		return FundUser{}, err
	}
	return FundUser{Email: addr, Name: name, Funds: orEmpty(funds)}, nil
}

// Record returns the plain record form of the user.
func (u FundUser) Record() Record {
	return Record{
		"email": u.Email,
		"name":  u.Name,
		"funds": orEmpty(u.Funds),
	}
}

func (u FundUser) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Record())
}
