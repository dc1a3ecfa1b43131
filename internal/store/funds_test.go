package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/indexfund/internal/domain"
)

func newTestGateway(t *testing.T) (*Gateway, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	g := NewGateway(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { g.Close() })
	return g, mr
}

func testPortfolio() domain.FundPortfolio {
	return domain.FundPortfolio{Tokens: []domain.TokenAllocation{{
		Token:        "ERG",
		PortfolioPct: decimal.NewFromInt(1),
		BuyTarget:    decimal.RequireFromString("2.5"),
		SellTarget:   decimal.RequireFromString("1.2"),
	}}}
}

// dump returns every field of the five fund and user hashes.
func dump(t *testing.T, g *Gateway) map[string]map[string]string {
	t.Helper()
	out := map[string]map[string]string{}
	for _, key := range []string{userNameKey, userFundIDsKey, fundManagerKey, fundInvestorsKey, fundPortfolioKey} {
		fields, err := g.client.HGetAll(context.Background(), key).Result()
		if err != nil {
			t.Fatalf("HGETALL %s: %v", key, err)
		}
		out[key] = fields
	}
	return out
}

func fundIDs(t *testing.T, g *Gateway, addr string) []string {
	t.Helper()
	ids, err := g.UserFundIDs(context.Background(), addr)
	if err != nil {
		t.Fatalf("UserFundIDs(%s): %v", addr, err)
	}
	return ids
}

func TestSaveFundCreatesFund(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	snap := domain.IndexFundSnapshot{
		FundID:         "f",
		ManagerEmail:   "m1@x.com",
		InvestorEmails: []string{"a@x.com", "b@x.com"},
		Portfolio:      testPortfolio(),
	}
	if err := g.SaveFund(ctx, snap); err != nil {
		t.Fatalf("SaveFund: %v", err)
	}

	manager, err := g.FundManager(ctx, "f")
	if err != nil || manager != "m1@x.com" {
		t.Errorf("FundManager = %q, %v", manager, err)
	}
	investors, err := g.FundInvestors(ctx, "f")
	if err != nil || !reflect.DeepEqual(investors, []string{"a@x.com", "b@x.com"}) {
		t.Errorf("FundInvestors = %v, %v", investors, err)
	}
	portfolio, err := g.FundPortfolio(ctx, "f")
	if err != nil {
		t.Fatalf("FundPortfolio: %v", err)
	}
	if len(portfolio.Tokens) != 1 || !portfolio.Tokens[0].Equal(testPortfolio().Tokens[0]) {
		t.Errorf("FundPortfolio = %+v", portfolio)
	}
	for _, addr := range []string{"m1@x.com", "a@x.com", "b@x.com"} {
		if ids := fundIDs(t, g, addr); !reflect.DeepEqual(ids, []string{"f"}) {
			t.Errorf("fund ids of %s = %v, want [f]", addr, ids)
		}
	}
}

func TestSaveFundDropsInvestor(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	snap := domain.IndexFundSnapshot{FundID: "f", ManagerEmail: "m1@x.com", InvestorEmails: []string{"a@x.com", "b@x.com"}}
	if err := g.SaveFund(ctx, snap); err != nil {
		t.Fatalf("first SaveFund: %v", err)
	}
	snap.InvestorEmails = []string{"a@x.com"}
	if err := g.SaveFund(ctx, snap); err != nil {
		t.Fatalf("second SaveFund: %v", err)
	}

	if ids := fundIDs(t, g, "a@x.com"); !reflect.DeepEqual(ids, []string{"f"}) {
		t.Errorf("fund ids of a = %v, want [f]", ids)
	}
	if ids := fundIDs(t, g, "b@x.com"); len(ids) != 0 {
		t.Errorf("fund ids of dropped investor = %v, want none", ids)
	}
	if ids := fundIDs(t, g, "m1@x.com"); !reflect.DeepEqual(ids, []string{"f"}) {
		t.Errorf("fund ids of manager = %v, want [f]", ids)
	}
	investors, err := g.FundInvestors(ctx, "f")
	if err != nil || !reflect.DeepEqual(investors, []string{"a@x.com"}) {
		t.Errorf("FundInvestors = %v, %v", investors, err)
	}
}

func TestSaveFundKeepsOtherMemberships(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	if err := g.SaveFund(ctx, domain.IndexFundSnapshot{FundID: "f", ManagerEmail: "m@x.com", InvestorEmails: []string{"a@x.com"}}); err != nil {
		t.Fatal(err)
	}
	if err := g.SaveFund(ctx, domain.IndexFundSnapshot{FundID: "g", ManagerEmail: "a@x.com"}); err != nil {
		t.Fatal(err)
	}

	if ids := fundIDs(t, g, "a@x.com"); !reflect.DeepEqual(ids, []string{"f", "g"}) {
		t.Errorf("fund ids of a = %v, want [f g]", ids)
	}
}

func TestSaveFundManagerMismatchWritesNothing(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	if err := g.SetUserName(ctx, "m1@x.com", "Manager"); err != nil {
		t.Fatal(err)
	}
	original := domain.IndexFundSnapshot{
		FundID:         "f",
		ManagerEmail:   "m1@x.com",
		InvestorEmails: []string{"a@x.com"},
		Portfolio:      testPortfolio(),
	}
	if err := g.SaveFund(ctx, original); err != nil {
		t.Fatalf("SaveFund: %v", err)
	}
	before := dump(t, g)

	err := g.SaveFund(ctx, domain.IndexFundSnapshot{
		FundID:         "f",
		ManagerEmail:   "m2@x.com",
		InvestorEmails: []string{"z@x.com"},
	})
	if !errors.Is(err, ErrManagerMismatch) {
		t.Fatalf("err = %v, want ErrManagerMismatch", err)
	}

	if after := dump(t, g); !reflect.DeepEqual(before, after) {
		t.Errorf("store changed after rejected save:\nbefore %v\nafter  %v", before, after)
	}
	if ids := fundIDs(t, g, "z@x.com"); len(ids) != 0 {
		t.Errorf("fund ids of z = %v, want none", ids)
	}
}

func TestLegacyListsAreDecoded(t *testing.T) {
	g, mr := newTestGateway(t)
	ctx := context.Background()

	mr.HSet(userFundIDsKey, "old@x.com", "f1, f2")
	mr.HSet(fundInvestorsKey, "f1", "a@x.com,b@x.com")
	mr.HSet(fundManagerKey, "f1", "old@x.com")

	if ids := fundIDs(t, g, "old@x.com"); !reflect.DeepEqual(ids, []string{"f1", "f2"}) {
		t.Errorf("legacy fund ids = %v, want [f1 f2]", ids)
	}
	investors, err := g.FundInvestors(ctx, "f1")
	if err != nil || !reflect.DeepEqual(investors, []string{"a@x.com", "b@x.com"}) {
		t.Errorf("legacy investors = %v, %v", investors, err)
	}

	// A save rewrites the legacy list as JSON.
	if err := g.SaveFund(ctx, domain.IndexFundSnapshot{FundID: "f1", ManagerEmail: "old@x.com", InvestorEmails: []string{"a@x.com"}}); err != nil {
		t.Fatalf("SaveFund: %v", err)
	}
	if got := mr.HGet(fundInvestorsKey, "f1"); got != `["a@x.com"]` {
		t.Errorf("stored investors = %s", got)
	}
	if ids := fundIDs(t, g, "b@x.com"); len(ids) != 0 {
		t.Errorf("fund ids of dropped legacy investor = %v", ids)
	}
}

func TestMissingFields(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := g.FundManager(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FundManager err = %v, want ErrNotFound", err)
	}
	if _, err := g.UserName(ctx, "nobody@x.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UserName err = %v, want ErrNotFound", err)
	}
	investors, err := g.FundInvestors(ctx, "nope")
	if err != nil || len(investors) != 0 {
		t.Errorf("FundInvestors = %v, %v", investors, err)
	}
	portfolio, err := g.FundPortfolio(ctx, "nope")
	if err != nil || len(portfolio.Tokens) != 0 {
		t.Errorf("FundPortfolio = %+v, %v", portfolio, err)
	}
}

func TestUserNames(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	for addr, name := range map[string]string{"a@x.com": "Alice", "b@x.com": "Bob"} {
		if err := g.SetUserName(ctx, addr, name); err != nil {
			t.Fatalf("SetUserName(%s): %v", addr, err)
		}
	}
	name, err := g.UserName(ctx, "a@x.com")
	if err != nil || name != "Alice" {
		t.Errorf("UserName = %q, %v", name, err)
	}
	emails, err := g.UserEmails(ctx)
	if err != nil {
		t.Fatalf("UserEmails: %v", err)
	}
	if len(emails) != 2 {
		t.Errorf("UserEmails = %v, want 2 entries", emails)
	}
}

func TestStoreUnreachable(t *testing.T) {
	g, mr := newTestGateway(t)
	mr.Close()

	if _, err := g.FundManager(context.Background(), "f"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want a transport error", err)
	}
}
