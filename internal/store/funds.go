package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/samber/lo"

	"github.com/mtlprog/indexfund/internal/domain"
)

const maxTxAttempts = 5

var (
	// ErrManagerMismatch indicates that the fund already has a different manager.
	ErrManagerMismatch = errors.New("fund is managed by another user")
	// ErrConflict indicates that concurrent writers kept invalidating the transaction.
	ErrConflict = errors.New("concurrent modification")
)

// FundManager returns the manager email of the fund, or ErrNotFound if the fund does not exist.
func (g *Gateway) FundManager(ctx context.Context, fundID string) (string, error) {
	return g.hget(ctx, fundManagerKey, fundID)
}

// FundInvestors returns the investor emails of the fund.
func (g *Gateway) FundInvestors(ctx context.Context, fundID string) ([]string, error) {
	return g.hgetList(ctx, fundInvestorsKey, fundID)
}

// FundPortfolio returns the stored portfolio of the fund. An absent portfolio is empty.
func (g *Gateway) FundPortfolio(ctx context.Context, fundID string) (domain.FundPortfolio, error) {
	raw, err := g.hget(ctx, fundPortfolioKey, fundID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.FundPortfolio{}, nil
		}
		return domain.FundPortfolio{}, err
	}
	p, err := domain.ParseFundPortfolio(raw)
	if err != nil {
		return domain.FundPortfolio{}, fmt.Errorf("decoding %s[%s]: %w", fundPortfolioKey, fundID, err)
	}
	return p, nil
}

// SaveFund writes the manager, investors and portfolio of the fund in a single
// MULTI/EXEC and keeps user_fund_ids in step: the fund id is added for the
// manager and every investor, and removed for investors no longer listed.
// If the fund already has a different manager nothing is written and
// ErrManagerMismatch is returned.
func (g *Gateway) SaveFund(ctx context.Context, s domain.IndexFundSnapshot) error {
	portfolio, err := s.Portfolio.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding portfolio of %s: %w", s.FundID, err)
	}
	investors, err := encodeList(s.InvestorEmails)
	if err != nil {
		return fmt.Errorf("encoding investors of %s: %w", s.FundID, err)
	}
	members := lo.Uniq(append([]string{s.ManagerEmail}, s.InvestorEmails...))

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, fundManagerKey, s.FundID).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("reading %s[%s]: %w", fundManagerKey, s.FundID, err)
		case current != s.ManagerEmail:
			return ErrManagerMismatch
		}

		previous, err := txList(ctx, tx, fundInvestorsKey, s.FundID)
		if err != nil {
			return err
		}
		dropped := lo.Without(previous, members...)

		memberships := make(map[string]string, len(members)+len(dropped))
		for _, m := range members {
			ids, err := txList(ctx, tx, userFundIDsKey, m)
			if err != nil {
				return err
			}
			if memberships[m], err = encodeList(lo.Uniq(append(ids, s.FundID))); err != nil {
				return err
			}
		}
		for _, m := range dropped {
			ids, err := txList(ctx, tx, userFundIDsKey, m)
			if err != nil {
				return err
			}
			if memberships[m], err = encodeList(lo.Without(ids, s.FundID)); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, fundManagerKey, s.FundID, s.ManagerEmail)
			pipe.HSet(ctx, fundInvestorsKey, s.FundID, investors)
			pipe.HSet(ctx, fundPortfolioKey, s.FundID, portfolio)
			for m, ids := range memberships {
				pipe.HSet(ctx, userFundIDsKey, m, ids)
			}
			return nil
		})
		return err
	}

	for range maxTxAttempts {
		err := g.client.Watch(ctx, txf, fundManagerKey, fundInvestorsKey, userFundIDsKey)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrManagerMismatch):
			return err
		default:
			return fmt.Errorf("saving fund %s: %w", s.FundID, err)
		}
	}
	return fmt.Errorf("saving fund %s: %w", s.FundID, ErrConflict)
}

func txList(ctx context.Context, tx *redis.Tx, key, field string) ([]string, error) {
	raw, err := tx.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s[%s]: %w", key, field, err)
	}
	list, err := decodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s[%s]: %w", key, field, err)
	}
	return list, nil
}
