// Package console implements the operator commands read from standard input.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/warpserver/internal/game"
	"github.com/dcrodman/warpserver/internal/lock"
	"github.com/dcrodman/warpserver/internal/subspace"
)

// ErrQuit is returned by Execute and Run when the operator asks to stop the server.
var ErrQuit = errors.New("quit requested from console")

// Server is what the console operates on.
type Server interface {
	Players() []game.PlayerInfo
	Kick(name, reason string) bool
	Ban(name, reason string) error
	Pardon(name string) (int64, error)
	AddToWhitelist(name string) error
	RemoveFromWhitelist(name string) (bool, error)
	Whitelist() ([]string, error)
	Locks() []lock.Entry
	LockOwner(name string) (string, bool)
	Subspaces() []subspace.Subspace
	Subspace(id int32) (subspace.Subspace, []string, bool)
	Now() int64
	Say(message string)
}

type command struct {
	usage string
	help  string
	run   func(c *Console, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":      {"/help", "list commands", (*Console).help},
		"players":   {"/players", "list connected players", (*Console).players},
		"kick":      {"/kick <name> [reason]", "disconnect a player", (*Console).kick},
		"ban":       {"/ban <name> [reason]", "ban a player by name, token, and address", (*Console).ban},
		"pardon":    {"/pardon <name|address>", "lift a ban", (*Console).pardon},
		"whitelist": {"/whitelist add|del|show [name]", "edit the whitelist", (*Console).whitelist},
		"locks":     {"/locks [name]", "list held locks or show who holds one", (*Console).locks},
		"subspaces": {"/subspaces [id]", "list subspaces or show the players in one", (*Console).subspaces},
		"say":       {"/say <message>", "send a chat message to every player", (*Console).say},
		"quit":      {"/quit", "stop the server", func(*Console, []string) error { return ErrQuit }},
	}
}

type Console struct {
	Server Server
	In     io.Reader
	Out    io.Writer
	Logger *logrus.Logger
}

// Run executes commands read from In until ctx is cancelled, In is exhausted,
// or the operator quits.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.Execute(line); errors.Is(err, ErrQuit) {
				return err
			} else if err != nil {
				fmt.Fprintf(c.Out, "error: %v\n", err)
			}
		}
	}
}

// Execute runs a single command line.
func (c *Console) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	cmd, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		return fmt.Errorf("unknown command %q, try /help", fields[0])
	}
	if c.Logger != nil {
		c.Logger.Infof("[CONSOLE] %s", line)
	}
	return cmd.run(c, fields[1:])
}

func (c *Console) help(_ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.Out, "%-32s %s\n", commands[name].usage, commands[name].help)
	}
	return nil
}

func (c *Console) players(_ []string) error {
	players := c.Server.Players()
	fmt.Fprintf(c.Out, "%d players online\n", len(players))
	for _, p := range players {
		fmt.Fprintf(c.Out, "  %s (%s) subspace %d rate %.2f\n", p.Name, p.Address, p.Subspace, p.Rate)
	}
	return nil
}

func nameAndReason(usage string, args []string) (string, string, error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("usage: %s", usage)
	}
	return args[0], strings.Join(args[1:], " "), nil
}

func (c *Console) kick(args []string) error {
	name, reason, err := nameAndReason(commands["kick"].usage, args)
	if err != nil {
		return err
	}
	if !c.Server.Kick(name, reason) {
		return fmt.Errorf("%s is not connected", name)
	}
	fmt.Fprintf(c.Out, "kicked %s\n", name)
	return nil
}

func (c *Console) ban(args []string) error {
	name, reason, err := nameAndReason(commands["ban"].usage, args)
	if err != nil {
		return err
	}
	if err := c.Server.Ban(name, reason); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "banned %s\n", name)
	return nil
}

func (c *Console) pardon(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["pardon"].usage)
	}
	removed, err := c.Server.Pardon(args[0])
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("%s is not banned", args[0])
	}
	fmt.Fprintf(c.Out, "pardoned %s\n", args[0])
	return nil
}

func (c *Console) whitelist(args []string) error {
	usage := fmt.Errorf("usage: %s", commands["whitelist"].usage)
	if len(args) == 0 {
		return usage
	}

	switch strings.ToLower(args[0]) {
	case "show":
		names, err := c.Server.Whitelist()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "whitelist: %s\n", strings.Join(names, ", "))
	case "add":
		if len(args) != 2 {
			return usage
		}
		if err := c.Server.AddToWhitelist(args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "added %s to the whitelist\n", args[1])
	case "del":
		if len(args) != 2 {
			return usage
		}
		removed, err := c.Server.RemoveFromWhitelist(args[1])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%s is not on the whitelist", args[1])
		}
		fmt.Fprintf(c.Out, "removed %s from the whitelist\n", args[1])
	default:
		return usage
	}
	return nil
}

func (c *Console) locks(args []string) error {
	if len(args) > 0 {
		owner, held := c.Server.LockOwner(args[0])
		if !held {
			return fmt.Errorf("%s is not held", args[0])
		}
		fmt.Fprintf(c.Out, "%s: %s\n", args[0], owner)
		return nil
	}
	locks := c.Server.Locks()
	fmt.Fprintf(c.Out, "%d locks held\n", len(locks))
	for _, l := range locks {
		fmt.Fprintf(c.Out, "  %s: %s\n", l.Name, l.Owner)
	}
	return nil
}

func (c *Console) subspaces(args []string) error {
	now := c.Server.Now()
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("usage: %s", commands["subspaces"].usage)
		}
		s, members, ok := c.Server.Subspace(int32(id))
		if !ok {
			return fmt.Errorf("subspace %d does not exist", id)
		}
		printSubspace(c.Out, s, now)
		fmt.Fprintf(c.Out, "  players: %s\n", strings.Join(members, ", "))
		return nil
	}
	for _, s := range c.Server.Subspaces() {
		printSubspace(c.Out, s, now)
	}
	return nil
}

func printSubspace(w io.Writer, s subspace.Subspace, now int64) {
	elapsed := time.Duration(s.Project(now) * float64(time.Second)).Round(time.Millisecond)
	fmt.Fprintf(w, "  subspace %d: time %v rate %.2f\n", s.ID, elapsed, s.Rate)
}

func (c *Console) say(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", commands["say"].usage)
	}
	c.Server.Say(strings.Join(args, " "))
	return nil
}
