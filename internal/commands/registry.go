package commands

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yourusername/jolt/internal/errors"
	"github.com/yourusername/jolt/internal/user"
)

// Registry manages command registration and dispatch
type Registry struct {
	commands map[string]Command
	mu       sync.RWMutex
}

// NewRegistry creates a new command registry
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register adds a command to the registry
func (r *Registry) Register(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(cmd.Name())
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %s already registered", name)
	}

	r.commands[name] = cmd
	return nil
}

// Get retrieves a command by name
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, exists := r.commands[strings.ToLower(name)]
	return cmd, exists
}

// GetAll returns all registered commands sorted by name
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	cmds := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	r.mu.RUnlock()

	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })
	return cmds
}

// Execute runs the named command after a permission check
func (r *Registry) Execute(ctx *Context) (*Response, error) {
	cmd, exists := r.Get(ctx.Command)
	if !exists {
		return nil, errors.NewNotFoundError("Command", ctx.Command)
	}

	required := cmd.RequiredPermission()
	if !user.HasPermission(ctx.UserLevel, required) {
		return nil, errors.NewPermissionError(required.String())
	}

	return cmd.Execute(ctx)
}
