package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestParseTokenAllocation(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		want    TokenAllocation
		wantErr bool
	}{
		{
			name: "all fields",
			rec:  Record{"token": "ERG", "portfolio_pct": 0.25, "buy_target": 1.5, "sell_target": 0.75},
			want: TokenAllocation{Token: "ERG", PortfolioPct: decimal.RequireFromString("0.25"), BuyTarget: decimal.RequireFromString("1.5"), SellTarget: decimal.RequireFromString("0.75")},
		},
		{
			name: "default pct",
			rec:  Record{"token": "SigUSD", "buy_target": json.Number("1.01"), "sell_target": json.Number("0.99")},
			want: TokenAllocation{Token: "SigUSD", PortfolioPct: decimal.NewFromInt(1), BuyTarget: decimal.RequireFromString("1.01"), SellTarget: decimal.RequireFromString("0.99")},
		},
		{
			name: "id fallback",
			rec:  Record{"id": "NETA", "buy_target": "0.1", "sell_target": "0.05"},
			want: TokenAllocation{Token: "NETA", PortfolioPct: decimal.NewFromInt(1), BuyTarget: decimal.RequireFromString("0.1"), SellTarget: decimal.RequireFromString("0.05")},
		},
		{
			name: "null pct uses default",
			rec:  Record{"token": "ERG", "portfolio_pct": nil, "buy_target": 2, "sell_target": 1},
			want: TokenAllocation{Token: "ERG", PortfolioPct: decimal.NewFromInt(1), BuyTarget: decimal.NewFromInt(2), SellTarget: decimal.NewFromInt(1)},
		},
		{name: "missing token", rec: Record{"buy_target": 1, "sell_target": 1}, wantErr: true},
		{name: "empty token", rec: Record{"token": "  ", "buy_target": 1, "sell_target": 1}, wantErr: true},
		{name: "null buy target", rec: Record{"token": "ERG", "buy_target": nil, "sell_target": 1}, wantErr: true},
		{name: "missing sell target", rec: Record{"token": "ERG", "buy_target": 1}, wantErr: true},
		{name: "non numeric target", rec: Record{"token": "ERG", "buy_target": "cheap", "sell_target": 1}, wantErr: true},
		{name: "non string token", rec: Record{"token": 42, "buy_target": 1, "sell_target": 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTokenAllocation(tt.rec)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("err = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTokenAllocationRoundTrip(t *testing.T) {
	allocs := []TokenAllocation{
		{Token: "ERG", PortfolioPct: mustDecimal(t, "0.5"), BuyTarget: mustDecimal(t, "3.2"), SellTarget: mustDecimal(t, "1.1")},
		{Token: "SigRSV", PortfolioPct: mustDecimal(t, "1"), BuyTarget: mustDecimal(t, "0.000123"), SellTarget: mustDecimal(t, "0")},
		{Token: "COMET", PortfolioPct: mustDecimal(t, "-0.1"), BuyTarget: mustDecimal(t, "1000000"), SellTarget: mustDecimal(t, "999999.999")},
	}

	for _, a := range allocs {
		got, err := ParseTokenAllocation(a.Record())
		if err != nil {
			t.Fatalf("parse(%v): %v", a.Token, err)
		}
		if !got.Equal(a) {
			t.Errorf("round trip of %s = %+v, want %+v", a.Token, got, a)
		}
	}
}

func TestTokenAllocationJSONThroughWire(t *testing.T) {
	a := TokenAllocation{Token: "ERG", PortfolioPct: mustDecimal(t, "0.25"), BuyTarget: mustDecimal(t, "1.5"), SellTarget: mustDecimal(t, "0.75")}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"buy_target":1.5,"portfolio_pct":0.25,"sell_target":0.75,"token":"ERG"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := ParseTokenAllocation(rec)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(a) {
		t.Errorf("got %+v, want %+v", got, a)
	}
}
