package store

import (
	"context"
	"fmt"
)

// UserName returns the display name stored for the user, or ErrNotFound.
func (g *Gateway) UserName(ctx context.Context, email string) (string, error) {
	return g.hget(ctx, userNameKey, email)
}

// SetUserName stores the display name for the user.
func (g *Gateway) SetUserName(ctx context.Context, email, name string) error {
	if err := g.client.HSet(ctx, userNameKey, email, name).Err(); err != nil {
		return fmt.Errorf("writing %s[%s]: %w", userNameKey, email, err)
	}
	return nil
}

// UserFundIDs returns the ids of the funds the user takes part in. Absent means none.
func (g *Gateway) UserFundIDs(ctx context.Context, email string) ([]string, error) {
	return g.hgetList(ctx, userFundIDsKey, email)
}

// UserEmails returns the email of every user that has a stored name.
func (g *Gateway) UserEmails(ctx context.Context) ([]string, error) {
	emails, err := g.client.HKeys(ctx, userNameKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", userNameKey, err)
	}
	return emails, nil
}
