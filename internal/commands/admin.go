package commands

import (
	"fmt"
	"strings"

	"github.com/yourusername/jolt/internal/ratelimit"
	"github.com/yourusername/jolt/internal/user"
)

// VerifyCommand opens an admin session for the caller's hostmask
type VerifyCommand struct {
	userManager *user.Manager
}

// NewVerifyCommand creates a new verify command
func NewVerifyCommand(userManager *user.Manager) *VerifyCommand {
	return &VerifyCommand{userManager: userManager}
}

func (c *VerifyCommand) Name() string                             { return "verify" }
func (c *VerifyCommand) RequiredPermission() user.PermissionLevel { return user.LevelNormal }
func (c *VerifyCommand) Help() string {
	return "verify <password> - become admin for this session (private message only)"
}

// Execute runs the verify command
func (c *VerifyCommand) Execute(ctx *Context) (*Response, error) {
	// Never acknowledge a password typed in a channel
	if !ctx.IsPM {
		return nil, nil
	}

	if len(ctx.Args) == 0 {
		return NewErrorResponse("Usage: verify <password>"), nil
	}
	if !c.userManager.HasAdminPassword() {
		return NewErrorResponse("Admin verification is not configured."), nil
	}

	ok, err := c.userManager.Verify(ctx.Hostmask, strings.Join(ctx.Args, " "))
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return NewErrorResponse("Invalid password."), nil
	}

	return NewPMResponse(fmt.Sprintf("Verified. Admin session active for %s.", ctx.Hostmask)), nil
}

// LogoutCommand ends the caller's admin session
type LogoutCommand struct {
	userManager *user.Manager
}

// NewLogoutCommand creates a new logout command
func NewLogoutCommand(userManager *user.Manager) *LogoutCommand {
	return &LogoutCommand{userManager: userManager}
}

func (c *LogoutCommand) Name() string                             { return "logout" }
func (c *LogoutCommand) RequiredPermission() user.PermissionLevel { return user.LevelAdmin }
func (c *LogoutCommand) Help() string                             { return "logout - end your admin session" }

// Execute runs the logout command
func (c *LogoutCommand) Execute(ctx *Context) (*Response, error) {
	c.userManager.Revoke(ctx.Hostmask)
	return NewPMResponse("Admin session ended."), nil
}

// ResetCommand clears a user's cooldown window
type ResetCommand struct {
	tracker *ratelimit.CooldownTracker
}

// NewResetCommand creates a new reset command
func NewResetCommand(tracker *ratelimit.CooldownTracker) *ResetCommand {
	return &ResetCommand{tracker: tracker}
}

func (c *ResetCommand) Name() string                             { return "reset" }
func (c *ResetCommand) RequiredPermission() user.PermissionLevel { return user.LevelAdmin }
func (c *ResetCommand) Help() string {
	return "reset <nick|user@host> - clear a user's fire window"
}

// Execute runs the reset command
func (c *ResetCommand) Execute(ctx *Context) (*Response, error) {
	if len(ctx.Args) != 1 {
		return NewErrorResponse("Usage: reset <nick|user@host>"), nil
	}

	key := strings.ToLower(ctx.Args[0])
	if !c.tracker.Reset(key) {
		return NewResponse(fmt.Sprintf("%s has no active window.", key)), nil
	}
	return NewResponse(fmt.Sprintf("Cleared the fire window for %s.", key)), nil
}
