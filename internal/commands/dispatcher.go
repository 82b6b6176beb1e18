package commands

import (
	"context"
	"strings"

	"github.com/yourusername/jolt/internal/user"
)

// Dispatcher handles command detection and routing
type Dispatcher struct {
	registry      *Registry
	userManager   *user.Manager
	commandPrefix string
}

// NewDispatcher creates a new command dispatcher
func NewDispatcher(registry *Registry, userManager *user.Manager, commandPrefix string) *Dispatcher {
	return &Dispatcher{
		registry:      registry,
		userManager:   userManager,
		commandPrefix: commandPrefix,
	}
}

// IsCommand checks if a message starts with the command prefix
func (d *Dispatcher) IsCommand(message string) bool {
	return d.commandPrefix != "" && strings.HasPrefix(message, d.commandPrefix)
}

// ParseCommand splits a command message into its lower-cased name and arguments.
// The name is empty if the message is not a command.
func (d *Dispatcher) ParseCommand(message string) (command string, args []string) {
	if !d.IsCommand(message) {
		return "", nil
	}

	parts := strings.Fields(strings.TrimPrefix(message, d.commandPrefix))
	if len(parts) == 0 {
		return "", nil
	}

	return strings.ToLower(parts[0]), parts[1:]
}

// Dispatch runs the command in inv. Unknown commands are ignored (handled is
// false) so other bots sharing the prefix are not answered.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) (resp *Response, handled bool, err error) {
	command, args := d.ParseCommand(inv.Message)
	if command == "" {
		return nil, false, nil
	}
	if _, exists := d.registry.Get(command); !exists {
		return nil, false, nil
	}

	level := user.LevelNormal
	if d.userManager != nil {
		level = d.userManager.GetPermissionLevel(inv.Hostmask)
	}

	resp, err = d.registry.Execute(&Context{
		Ctx:       ctx,
		Command:   command,
		Args:      args,
		Nick:      inv.Nick,
		Hostmask:  inv.Hostmask,
		UserKey:   inv.UserKey,
		Channel:   inv.Channel,
		IsPM:      inv.Channel == "",
		UserLevel: level,
	})
	return resp, true, err
}

// GetCommandPrefix returns the current command prefix
func (d *Dispatcher) GetCommandPrefix() string {
	return d.commandPrefix
}
