// Package auth decides whether a player may join: reserved names, the token
// each name was first claimed with, bans, capacity, and the whitelist.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/warpserver/internal/core/client"
	"github.com/dcrodman/warpserver/internal/core/data"
	"github.com/dcrodman/warpserver/internal/packets"
)

// Rejection is a failed handshake check along with what the player is told.
type Rejection struct {
	Code   packets.HandshakeCode
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("handshake rejected (%d): %s", r.Code, r.Reason)
}

var (
	ErrProtocolMismatch = &Rejection{packets.HandshakeProtocolMismatch, "Protocol mismatch"}
	ErrAlreadyConnected = &Rejection{packets.HandshakeAlreadyConnected, "Client already connected"}
	ErrReservedName     = &Rejection{packets.HandshakeReservedName, "Kicked for using a reserved name"}
	ErrInvalidToken     = &Rejection{packets.HandshakeInvalidToken, "Invalid player token for this name"}
	ErrBanned           = &Rejection{packets.HandshakeBanned, "You were banned from the server"}
	ErrServerFull       = &Rejection{packets.HandshakeServerFull, "Server full"}
	ErrNotWhitelisted   = &Rejection{packets.HandshakeNotWhitelisted, "You are not on the whitelist"}
	ErrMalformed        = &Rejection{packets.HandshakeMalformed, "Malformed handshake"}
)

// AsRejection returns the Rejection wrapped in err, if any.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

const maxNameLength = 32

// Characters that would let a name escape the directories player data is kept in.
const forbiddenNameChars = `/\:*?"<>|`

// Policy performs the handshake checks that need persistent state.
type Policy struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Clock  func() time.Time

	reserved map[string]bool
	tokens   *Cache

	mu               sync.RWMutex
	maxPlayers       int
	whitelistEnabled bool
}

func NewPolicy(db *gorm.DB, logger *logrus.Logger, reservedNames []string) *Policy {
	p := &Policy{
		DB:       db,
		Logger:   logger,
		Clock:    time.Now,
		reserved: make(map[string]bool),
		tokens:   NewCache(),
	}
	for _, name := range reservedNames {
		p.reserved[client.FoldName(name)] = true
	}
	return p
}

// SetLimits updates the settings that can be reloaded while the server runs.
func (p *Policy) SetLimits(maxPlayers int, whitelistEnabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxPlayers = maxPlayers
	p.whitelistEnabled = whitelistEnabled
}

func (p *Policy) MaxPlayers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxPlayers
}

func (p *Policy) WhitelistEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.whitelistEnabled
}

// CheckName rejects reserved names and names that are empty, too long, or
// contain control or path characters.
func (p *Policy) CheckName(name string) error {
	if name == "" || len(name) > maxNameLength || strings.TrimSpace(name) != name {
		return ErrReservedName
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return ErrReservedName
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return ErrReservedName
		}
	}
	if p.reserved[client.FoldName(name)] {
		return ErrReservedName
	}
	return nil
}

// CheckToken verifies token against the one name was first seen with. A name
// that has never been seen is registered to token.
func (p *Policy) CheckToken(name, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	key := client.FoldName(name)
	if known, ok := p.tokens.Get(key); ok {
		if known != token {
			return ErrInvalidToken
		}
		return nil
	}

	record, err := data.FindPlayerToken(p.DB, key)
	if err != nil {
		return fmt.Errorf("looking up token for %s: %w", name, err)
	}
	if record == nil {
		now := p.Clock()
		record = &data.PlayerToken{Name: key, Token: token, FirstSeen: now, LastSeen: now}
		if err := data.CreatePlayerToken(p.DB, record); err != nil {
			// Another handshake for the same name may have registered it first.
			existing, findErr := data.FindPlayerToken(p.DB, key)
			if findErr != nil || existing == nil {
				return fmt.Errorf("registering token for %s: %w", name, err)
			}
			record = existing
		} else {
			p.Logger.Infof("[AUTH] registered new player %s", name)
		}
	}
	if record.Token != token {
		return ErrInvalidToken
	}
	p.tokens.Put(key, record.Token, 0)
	return nil
}

// Seen records a successful join.
func (p *Policy) Seen(name string) {
	if err := data.TouchPlayerToken(p.DB, client.FoldName(name), p.Clock()); err != nil {
		p.Logger.Warnf("[AUTH] failed to update last seen time for %s: %v", name, err)
	}
}

// CheckBanned rejects players whose name, address, or token has been banned.
func (p *Policy) CheckBanned(name, address, token string) error {
	ban, err := data.FindMatchingBan(p.DB, client.FoldName(name), address, token)
	if err != nil {
		return fmt.Errorf("looking up bans for %s: %w", name, err)
	}
	if ban != nil {
		return ErrBanned
	}
	return nil
}

// CheckCapacity rejects a join when players are already connected and the
// server is at its configured maximum.
func (p *Policy) CheckCapacity(players int) error {
	if max := p.MaxPlayers(); max > 0 && players >= max {
		return ErrServerFull
	}
	return nil
}

// CheckWhitelist rejects names missing from the whitelist while it is enabled.
func (p *Policy) CheckWhitelist(name string) error {
	if !p.WhitelistEnabled() {
		return nil
	}
	ok, err := data.IsWhitelisted(p.DB, client.FoldName(name))
	if err != nil {
		return fmt.Errorf("checking whitelist for %s: %w", name, err)
	}
	if !ok {
		return ErrNotWhitelisted
	}
	return nil
}

// Ban bans name along with the token it was registered with, if any.
func (p *Policy) Ban(name, reason string) error {
	key := client.FoldName(name)
	if err := data.CreateBan(p.DB, &data.Ban{Kind: data.BanByName, Value: key, Reason: reason}); err != nil {
		return fmt.Errorf("banning %s: %w", name, err)
	}
	record, err := data.FindPlayerToken(p.DB, key)
	if err != nil {
		return fmt.Errorf("looking up token for %s: %w", name, err)
	}
	if record != nil {
		ban := &data.Ban{Kind: data.BanByToken, Value: record.Token, Reason: reason}
		if err := data.CreateBan(p.DB, ban); err != nil {
			return fmt.Errorf("banning token of %s: %w", name, err)
		}
	}
	return nil
}

// BanAddress bans every connection from address.
func (p *Policy) BanAddress(address, reason string) error {
	return data.CreateBan(p.DB, &data.Ban{Kind: data.BanByAddress, Value: address, Reason: reason})
}

// Pardon lifts every ban on name or its token, or on the address given as
// name. It returns the number of bans removed.
func (p *Policy) Pardon(name string) (int64, error) {
	key := client.FoldName(name)
	removed, err := data.DeleteBans(p.DB, key)
	if err != nil {
		return 0, fmt.Errorf("pardoning %s: %w", name, err)
	}
	if key != name {
		n, err := data.DeleteBans(p.DB, name)
		if err != nil {
			return removed, fmt.Errorf("pardoning %s: %w", name, err)
		}
		removed += n
	}

	record, err := data.FindPlayerToken(p.DB, key)
	if err != nil {
		return removed, fmt.Errorf("looking up token for %s: %w", name, err)
	}
	if record != nil {
		n, err := data.DeleteBans(p.DB, record.Token)
		if err != nil {
			return removed, fmt.Errorf("pardoning token of %s: %w", name, err)
		}
		removed += n
	}
	return removed, nil
}

func (p *Policy) AddToWhitelist(name string) error {
	return data.AddToWhitelist(p.DB, client.FoldName(name))
}

func (p *Policy) RemoveFromWhitelist(name string) (bool, error) {
	return data.RemoveFromWhitelist(p.DB, client.FoldName(name))
}

func (p *Policy) Whitelist() ([]string, error) {
	return data.FindWhitelist(p.DB)
}
