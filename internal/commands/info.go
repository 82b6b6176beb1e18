package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/yourusername/jolt/internal/database"
	"github.com/yourusername/jolt/internal/ratelimit"
	"github.com/yourusername/jolt/internal/user"
)

const statsWindow = 24 * time.Hour

// HelpCommand lists commands or describes one
type HelpCommand struct {
	registry *Registry
	prefix   string
}

// NewHelpCommand creates a new help command
func NewHelpCommand(registry *Registry, prefix string) *HelpCommand {
	return &HelpCommand{registry: registry, prefix: prefix}
}

func (c *HelpCommand) Name() string                             { return "help" }
func (c *HelpCommand) RequiredPermission() user.PermissionLevel { return user.LevelNormal }
func (c *HelpCommand) Help() string {
	return fmt.Sprintf("%shelp [command] - list commands or describe one", c.prefix)
}

// Execute runs the help command
func (c *HelpCommand) Execute(ctx *Context) (*Response, error) {
	if len(ctx.Args) > 0 {
		name := strings.TrimPrefix(ctx.Args[0], c.prefix)
		cmd, exists := c.registry.Get(name)
		if !exists {
			return NewErrorResponse(fmt.Sprintf("Unknown command: %s", name)), nil
		}
		return NewResponse(fmt.Sprintf("%s (requires %s level)", cmd.Help(), cmd.RequiredPermission())), nil
	}

	var names []string
	for _, cmd := range c.registry.GetAll() {
		if user.HasPermission(ctx.UserLevel, cmd.RequiredPermission()) {
			names = append(names, c.prefix+cmd.Name())
		}
	}
	return NewResponse("Commands: " + strings.Join(names, ", ")), nil
}

// FiresCommand reports the caller's remaining fires in the current window
type FiresCommand struct {
	tracker *ratelimit.CooldownTracker
	clock   clockwork.Clock
}

// NewFiresCommand creates a new fires command
func NewFiresCommand(tracker *ratelimit.CooldownTracker, clock clockwork.Clock) *FiresCommand {
	return &FiresCommand{tracker: tracker, clock: clock}
}

func (c *FiresCommand) Name() string                             { return "fires" }
func (c *FiresCommand) RequiredPermission() user.PermissionLevel { return user.LevelNormal }
func (c *FiresCommand) Help() string {
	return "fires - show how many fires you have left and when your window resets"
}

// Execute runs the fires command
func (c *FiresCommand) Execute(ctx *Context) (*Response, error) {
	status := c.tracker.Peek(ctx.UserKey, c.clock.Now())
	max := c.tracker.MaxFires()

	if status.FiresRemaining <= 0 {
		wait := ceilSeconds(status.ResetIn)
		if !status.Tracked {
			wait = ceilSeconds(c.tracker.Window())
		}
		return NewResponse(fmt.Sprintf("%s: no fires left. Wait %d seconds...", ctx.Nick, wait)), nil
	}

	message := fmt.Sprintf("%s: %d of %d fires left", ctx.Nick, status.FiresRemaining, max)
	if status.Tracked {
		message += fmt.Sprintf(" (window resets in %ds)", ceilSeconds(status.ResetIn))
	}
	return NewResponse(message), nil
}

// StatsCommand summarises recent fire events
type StatsCommand struct {
	db      *database.DB
	tracker *ratelimit.CooldownTracker
	clock   clockwork.Clock
}

// NewStatsCommand creates a new stats command
func NewStatsCommand(db *database.DB, tracker *ratelimit.CooldownTracker, clock clockwork.Clock) *StatsCommand {
	return &StatsCommand{db: db, tracker: tracker, clock: clock}
}

func (c *StatsCommand) Name() string                             { return "stats" }
func (c *StatsCommand) RequiredPermission() user.PermissionLevel { return user.LevelNormal }
func (c *StatsCommand) Help() string {
	return "stats - fired, denied and failed requests over the last 24 hours"
}

// Execute runs the stats command
func (c *StatsCommand) Execute(ctx *Context) (*Response, error) {
	counts, err := c.db.CountFireEventsByOutcome(ctx.Ctx, c.clock.Now().Add(-statsWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count fire events: %w", err)
	}

	return NewResponse(fmt.Sprintf("Last 24h: %d fired, %d denied, %d failed. Tracking %d users.",
		counts[database.OutcomeFired],
		counts[database.OutcomeDenied],
		counts[database.OutcomeFailed],
		c.tracker.Len(),
	)), nil
}

// ceilSeconds rounds d up to whole seconds, minimum 1
func ceilSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
