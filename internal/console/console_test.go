package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/warpserver/internal/game"
	"github.com/dcrodman/warpserver/internal/lock"
	"github.com/dcrodman/warpserver/internal/subspace"
)

type fakeServer struct {
	players   []game.PlayerInfo
	kicked    []string
	banned    []string
	bans      map[string]bool
	whitelist []string
	said      []string
}

func (f *fakeServer) Players() []game.PlayerInfo { return f.players }

func (f *fakeServer) Kick(name, reason string) bool {
	for _, p := range f.players {
		if p.Name == name {
			f.kicked = append(f.kicked, name+":"+reason)
			return true
		}
	}
	return false
}

func (f *fakeServer) Ban(name, reason string) error {
	f.banned = append(f.banned, name)
	f.bans[name] = true
	return nil
}

func (f *fakeServer) Pardon(name string) (int64, error) {
	if !f.bans[name] {
		return 0, nil
	}
	delete(f.bans, name)
	return 1, nil
}

func (f *fakeServer) AddToWhitelist(name string) error {
	f.whitelist = append(f.whitelist, name)
	return nil
}

func (f *fakeServer) RemoveFromWhitelist(name string) (bool, error) {
	for i, n := range f.whitelist {
		if n == name {
			f.whitelist = append(f.whitelist[:i], f.whitelist[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeServer) Whitelist() ([]string, error) { return f.whitelist, nil }

func (f *fakeServer) Locks() []lock.Entry {
	return []lock.Entry{{Name: "vessel-1", Owner: "Jeb"}}
}

func (f *fakeServer) LockOwner(name string) (string, bool) {
	if name == "vessel-1" {
		return "Jeb", true
	}
	return "", false
}

func (f *fakeServer) Subspaces() []subspace.Subspace {
	return []subspace.Subspace{{ID: 0, ReferenceTick: 0, SimulationTime: 100, Rate: 1}}
}

func (f *fakeServer) Subspace(id int32) (subspace.Subspace, []string, bool) {
	if id != 0 {
		return subspace.Subspace{}, nil, false
	}
	return f.Subspaces()[0], []string{"Bill", "Jeb"}, true
}

func (f *fakeServer) Now() int64 { return int64(2 * time.Second) }

func (f *fakeServer) Say(message string) { f.said = append(f.said, message) }

func newConsole() (*Console, *fakeServer, *bytes.Buffer) {
	server := &fakeServer{
		players: []game.PlayerInfo{{Name: "Jeb", Address: "127.0.0.1", Rate: 1}},
		bans:    make(map[string]bool),
	}
	out := &bytes.Buffer{}
	return &Console{Server: server, Out: out}, server, out
}

func TestConsole_Execute(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
		output  string
	}{
		{name: "blank line", line: "   "},
		{name: "unknown command", line: "/warp", wantErr: true},
		{name: "help", line: "/help", output: "/whitelist add|del|show"},
		{name: "players", line: "/players", output: "1 players online"},
		{name: "kick missing name", line: "/kick", wantErr: true},
		{name: "kick offline player", line: "/kick Bob", wantErr: true},
		{name: "kick", line: "/kick Jeb", output: "kicked Jeb"},
		{name: "pardon unknown", line: "/pardon Bob", wantErr: true},
		{name: "whitelist bad subcommand", line: "/whitelist list", wantErr: true},
		{name: "locks", line: "/locks", output: "vessel-1: Jeb"},
		{name: "lock owner", line: "/locks vessel-1", output: "vessel-1: Jeb"},
		{name: "lock not held", line: "/locks vessel-2", wantErr: true},
		{name: "subspaces", line: "/subspaces", output: "subspace 0: time 1m42s rate 1.00"},
		{name: "subspace members", line: "/subspaces 0", output: "players: Bill, Jeb"},
		{name: "unknown subspace", line: "/subspaces 7", wantErr: true},
		{name: "bad subspace id", line: "/subspaces zero", wantErr: true},
		{name: "say without message", line: "/say", wantErr: true},
		{name: "case insensitive", line: "/PLAYERS", output: "Jeb (127.0.0.1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, out := newConsole()
			err := c.Execute(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.output) {
				t.Errorf("expected output to contain %q, got %q", tt.output, out.String())
			}
		})
	}
}

func TestConsole_Moderation(t *testing.T) {
	c, server, _ := newConsole()

	for _, line := range []string{
		"/kick Jeb too many explosions",
		"/ban Bill griefing",
		"/pardon Bill",
		"/whitelist add Val",
		"/whitelist add Bob",
		"/whitelist del Bob",
		"/say hello everyone",
	} {
		if err := c.Execute(line); err != nil {
			t.Fatalf("Execute(%q) error = %v", line, err)
		}
	}

	if diff := cmp.Diff([]string{"Jeb:too many explosions"}, server.kicked); diff != "" {
		t.Errorf("unexpected kicks; diff:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Bill"}, server.banned); diff != "" {
		t.Errorf("unexpected bans; diff:\n%s", diff)
	}
	if len(server.bans) != 0 {
		t.Errorf("expected the ban to be lifted, got %v", server.bans)
	}
	if diff := cmp.Diff([]string{"Val"}, server.whitelist); diff != "" {
		t.Errorf("unexpected whitelist; diff:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"hello everyone"}, server.said); diff != "" {
		t.Errorf("unexpected chat; diff:\n%s", diff)
	}
	if err := c.Execute("/whitelist del Bob"); err == nil {
		t.Error("expected error removing a name that is not whitelisted")
	}
}

func TestConsole_Run(t *testing.T) {
	c, server, out := newConsole()
	c.In = strings.NewReader("/say one\n/bogus\n/quit\n/say two\n")

	err := c.Run(context.Background())
	if !errors.Is(err, ErrQuit) {
		t.Fatalf("Run() error = %v, want ErrQuit", err)
	}
	if diff := cmp.Diff([]string{"one"}, server.said); diff != "" {
		t.Errorf("expected commands after /quit to be skipped; diff:\n%s", diff)
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("expected errors to be written to the output, got %q", out.String())
	}
}

func TestConsole_RunEndOfInput(t *testing.T) {
	c, _, _ := newConsole()
	c.In = strings.NewReader("/players\n")

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
