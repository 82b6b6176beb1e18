package commands

import (
	"github.com/jonboulle/clockwork"
	"github.com/yourusername/jolt/internal/database"
	"github.com/yourusername/jolt/internal/ratelimit"
	"github.com/yourusername/jolt/internal/user"
)

// Dependencies are what the built-in commands read and change
type Dependencies struct {
	Tracker     *ratelimit.CooldownTracker
	DB          *database.DB
	UserManager *user.Manager
	Clock       clockwork.Clock
	Prefix      string
}

// RegisterDefaults registers every built-in command
func RegisterDefaults(registry *Registry, deps Dependencies) error {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	for _, cmd := range []Command{
		NewHelpCommand(registry, deps.Prefix),
		NewFiresCommand(deps.Tracker, clock),
		NewStatsCommand(deps.DB, deps.Tracker, clock),
		NewVerifyCommand(deps.UserManager),
		NewLogoutCommand(deps.UserManager),
		NewResetCommand(deps.Tracker),
	} {
		if err := registry.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}
