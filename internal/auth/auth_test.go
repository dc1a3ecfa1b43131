package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func init() {
	HashCost = bcrypt.MinCost
}

func TestCanActAs(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		addr string
		want bool
	}{
		{"own email", Identity{Username: "a@b.com"}, "a@b.com", true},
		{"own email unnormalized", Identity{Username: "a@b.com"}, " A@B.com ", true},
		{"other email", Identity{Username: "a@b.com"}, "c@d.com", false},
		{"superuser", Identity{Username: "admin", Superuser: true}, "c@d.com", true},
		{"empty identity", Identity{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.CanActAs(tt.addr); got != tt.want {
				t.Errorf("CanActAs(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should carry no identity")
	}
	ctx := WithIdentity(context.Background(), Identity{Username: "a@b.com"})
	id, ok := FromContext(ctx)
	if !ok || id.Username != "a@b.com" {
		t.Errorf("FromContext = %+v, %v", id, ok)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the password")
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Errorf("CheckPassword with right password: %v", err)
	}
	if err := CheckPassword(hash, "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("CheckPassword with wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestTokenIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 5*time.Minute, 24*time.Hour)
	pair, err := issuer.Issue(Identity{Username: "a@b.com", Superuser: true})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	id, err := issuer.Verify(pair.Access)
	if err != nil {
		t.Fatalf("Verify access: %v", err)
	}
	if id.Username != "a@b.com" || !id.Superuser {
		t.Errorf("identity = %+v", id)
	}

	if _, err := issuer.Verify(pair.Refresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token used as access: err = %v, want ErrInvalidToken", err)
	}

	access, err := issuer.Refresh(pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := issuer.Verify(access); err != nil {
		t.Errorf("refreshed access token: %v", err)
	}

	if _, err := issuer.Refresh(pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token used as refresh: err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenRejectsTamperingAndExpiry(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute, time.Hour)
	pair, err := issuer.Issue(Identity{Username: "a@b.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := NewTokenIssuer("other-secret", time.Minute, time.Hour)
	if _, err := other.Verify(pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: err = %v, want ErrInvalidToken", err)
	}

	parts := strings.Split(pair.Access, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token: err = %v, want ErrInvalidToken", err)
	}

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := issuer.Verify(pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: err = %v, want ErrInvalidToken", err)
	}

	if _, err := issuer.Verify("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: err = %v, want ErrInvalidToken", err)
	}
}
