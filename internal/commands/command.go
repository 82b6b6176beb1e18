package commands

import (
	"context"

	"github.com/yourusername/jolt/internal/user"
)

// Command represents a bot command that can be executed
type Command interface {
	// Name returns the command name (without prefix)
	Name() string

	// Execute runs the command with the given context
	Execute(ctx *Context) (*Response, error)

	// RequiredPermission returns the minimum permission level needed to run this command
	RequiredPermission() user.PermissionLevel

	// Help returns help text for this command
	Help() string
}

// Invocation is a chat message that starts with the command prefix
type Invocation struct {
	Message  string
	Nick     string
	Hostmask string
	Channel  string // empty for PMs
	// UserKey is the caller's cooldown table key
	UserKey string
}

// Context contains all information needed to execute a command
type Context struct {
	// Ctx bounds any blocking work the command does
	Ctx context.Context

	Command string
	Args    []string

	Nick     string
	Hostmask string
	UserKey  string

	Channel string
	IsPM    bool

	UserLevel user.PermissionLevel
}

// Response represents a command response
type Response struct {
	Message string

	// SendAsPM sends the reply to the caller instead of the channel
	SendAsPM bool

	IsError bool
}

// NewResponse creates a new command response
func NewResponse(message string) *Response {
	return &Response{Message: message}
}

// NewErrorResponse creates a new error response
func NewErrorResponse(message string) *Response {
	return &Response{Message: message, IsError: true}
}

// NewPMResponse creates a new response that will be sent as a PM
func NewPMResponse(message string) *Response {
	return &Response{Message: message, SendAsPM: true}
}
