package auth

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/core/data"
)

func newTestPolicy(t *testing.T, reserved ...string) *Policy {
	t.Helper()
	db, err := data.Initialize(data.EngineSQLite, filepath.Join(t.TempDir(), "auth.db"), false)
	if err != nil {
		t.Fatalf("error initializing test database: %v", err)
	}
	t.Cleanup(func() { data.Shutdown(db) })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewPolicy(db, logger, reserved)
}

func TestPolicy_CheckName(t *testing.T) {
	p := newTestPolicy(t, "Server", "Admin")

	tests := map[string]struct {
		name    string
		wantErr error
	}{
		"plain name":           {name: "Jebediah", wantErr: nil},
		"reserved":             {name: "Server", wantErr: ErrReservedName},
		"reserved other case":  {name: "aDMIN", wantErr: ErrReservedName},
		"empty":                {name: "", wantErr: ErrReservedName},
		"path separator":       {name: "../etc", wantErr: ErrReservedName},
		"control character":    {name: "Jeb\x07", wantErr: ErrReservedName},
		"surrounding spaces":   {name: " Jeb", wantErr: ErrReservedName},
		"too long":             {name: "abcdefghijklmnopqrstuvwxyz0123456789", wantErr: ErrReservedName},
		"unicode is permitted": {name: "Jëb", wantErr: nil},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if err := p.CheckName(tt.name); !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckName(%q) = %v, want %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestPolicy_CheckToken(t *testing.T) {
	p := newTestPolicy(t)

	if err := p.CheckToken("Bob", "secret"); err != nil {
		t.Fatalf("first join should register the token, got %v", err)
	}
	if err := p.CheckToken("Bob", "secret"); err != nil {
		t.Errorf("matching token rejected: %v", err)
	}
	if err := p.CheckToken("bob", "other"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if err := p.CheckToken("Val", ""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected empty token to be rejected, got %v", err)
	}

	// A fresh policy has an empty cache and must fall back to the database.
	fresh := NewPolicy(p.DB, p.Logger, nil)
	if err := fresh.CheckToken("Bob", "other"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken from the database, got %v", err)
	}
	if err := fresh.CheckToken("Bob", "secret"); err != nil {
		t.Errorf("matching token rejected: %v", err)
	}
}

func TestPolicy_CheckTokenConcurrentRegistration(t *testing.T) {
	p := newTestPolicy(t)

	// Another handshake registers the name between the lookup and the insert.
	registered := false
	err := p.DB.Callback().Create().Before("gorm:begin_transaction").Register("test:competing_registration", func(*gorm.DB) {
		if registered {
			return
		}
		registered = true
		competitor := &data.PlayerToken{Name: client.FoldName("Bob"), Token: "first"}
		if err := data.CreatePlayerToken(p.DB, competitor); err != nil {
			t.Errorf("error registering the competing token: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("error registering callback: %v", err)
	}

	if err := p.CheckToken("Bob", "second"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for the losing token, got %v", err)
	}
	if err := p.CheckToken("Bob", "first"); err != nil {
		t.Errorf("expected the winning token to be accepted, got %v", err)
	}
}

func TestPolicy_BanAndPardon(t *testing.T) {
	p := newTestPolicy(t)
	if err := p.CheckToken("Bob", "bob-token"); err != nil {
		t.Fatal(err)
	}

	if err := p.Ban("Bob", "griefing"); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if err := p.CheckBanned("BOB", "127.0.0.1", "x"); !errors.Is(err, ErrBanned) {
		t.Errorf("name ban not applied: %v", err)
	}
	// Renaming does not evade the ban because the token is banned too.
	if err := p.CheckBanned("Robert", "127.0.0.1", "bob-token"); !errors.Is(err, ErrBanned) {
		t.Errorf("token ban not applied: %v", err)
	}

	if err := p.BanAddress("10.1.1.1", ""); err != nil {
		t.Fatal(err)
	}
	if err := p.CheckBanned("Val", "10.1.1.1", "v"); !errors.Is(err, ErrBanned) {
		t.Errorf("address ban not applied: %v", err)
	}

	removed, err := p.Pardon("Bob")
	if err != nil {
		t.Fatalf("Pardon() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 bans lifted, got %d", removed)
	}
	if err := p.CheckBanned("Bob", "127.0.0.1", "bob-token"); err != nil {
		t.Errorf("expected Bob to be pardoned, got %v", err)
	}
	if removed, _ := p.Pardon("10.1.1.1"); removed != 1 {
		t.Errorf("expected the address ban to be lifted, got %d", removed)
	}
}

func TestPolicy_CapacityAndWhitelist(t *testing.T) {
	p := newTestPolicy(t)
	p.SetLimits(2, false)

	if err := p.CheckCapacity(1); err != nil {
		t.Errorf("CheckCapacity(1) = %v", err)
	}
	if err := p.CheckCapacity(2); !errors.Is(err, ErrServerFull) {
		t.Errorf("CheckCapacity(2) = %v, want ErrServerFull", err)
	}
	if err := p.CheckWhitelist("Jeb"); err != nil {
		t.Errorf("whitelist is disabled, got %v", err)
	}

	p.SetLimits(0, true)
	if err := p.CheckCapacity(1000); err != nil {
		t.Errorf("zero max players means unlimited, got %v", err)
	}
	if err := p.CheckWhitelist("Jeb"); !errors.Is(err, ErrNotWhitelisted) {
		t.Errorf("CheckWhitelist() = %v, want ErrNotWhitelisted", err)
	}
	if err := p.AddToWhitelist("Jeb"); err != nil {
		t.Fatal(err)
	}
	if err := p.CheckWhitelist("jeb"); err != nil {
		t.Errorf("whitelisted player rejected: %v", err)
	}
	if removed, err := p.RemoveFromWhitelist("JEB"); err != nil || !removed {
		t.Errorf("RemoveFromWhitelist() = %v, %v", removed, err)
	}
}

func TestAsRejection(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrServerFull)
	r, ok := AsRejection(wrapped)
	if !ok || r.Code != ErrServerFull.Code {
		t.Errorf("AsRejection() = %v, %v", r, ok)
	}
	if _, ok := AsRejection(errors.New("database down")); ok {
		t.Error("plain errors are not rejections")
	}
}
