package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConfig indicates invalid or missing configuration
	ErrorTypeConfig ErrorType = "Config"

	// ErrorTypeActuator indicates the device could not be fired
	ErrorTypeActuator ErrorType = "Actuator"

	// ErrorTypeNotifier indicates a reply could not be delivered
	ErrorTypeNotifier ErrorType = "Notifier"

	// ErrorTypeDatabase indicates a database operation failure
	ErrorTypeDatabase ErrorType = "Database"

	// ErrorTypePermission indicates insufficient permissions
	ErrorTypePermission ErrorType = "Permission"

	// ErrorTypeValidation indicates invalid input data
	ErrorTypeValidation ErrorType = "Validation"

	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NotFound"

	// ErrorTypeUnexpected indicates an unexpected/unknown error
	ErrorTypeUnexpected ErrorType = "Unexpected"
)

// BotError represents a structured error with type and user-friendly message
type BotError struct {
	Type           ErrorType
	UserMessage    string // Message to send to the user
	InternalError  error  // Original error for logging
	InternalDetail string // Additional detail for logging
	RequestID      string
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.InternalError != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.UserMessage, e.InternalError)
	}
	if e.InternalDetail != "" {
		return fmt.Sprintf("%s: %s (detail: %s)", e.Type, e.UserMessage, e.InternalDetail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.UserMessage)
}

// Unwrap returns the underlying error
func (e *BotError) Unwrap() error {
	return e.InternalError
}

// NewConfigError creates an error for a configuration problem found at startup
func NewConfigError(err error) *BotError {
	return &BotError{
		Type:          ErrorTypeConfig,
		UserMessage:   "Invalid configuration.",
		InternalError: err,
	}
}

// NewActuatorError creates an error for a failed actuation.
// The fire has already been counted against the user's window.
func NewActuatorError(userKey, requestID string, err error) *BotError {
	return &BotError{
		Type:           ErrorTypeActuator,
		UserMessage:    "The device is unavailable right now.",
		InternalError:  err,
		InternalDetail: fmt.Sprintf("user=%s", userKey),
		RequestID:      requestID,
	}
}

// NewNotifierError creates an error for a reply that could not be queued or sent
func NewNotifierError(target string, err error) *BotError {
	return &BotError{
		Type:           ErrorTypeNotifier,
		UserMessage:    "Could not deliver reply.",
		InternalError:  err,
		InternalDetail: fmt.Sprintf("target=%s", target),
	}
}

// NewDatabaseError creates an error for database operation failures
func NewDatabaseError(operation string, err error) *BotError {
	return &BotError{
		Type:           ErrorTypeDatabase,
		UserMessage:    "A database error occurred. Please try again later.",
		InternalError:  err,
		InternalDetail: fmt.Sprintf("operation=%s", operation),
	}
}

// NewPermissionError creates an error for insufficient permissions
func NewPermissionError(levelName string) *BotError {
	return &BotError{
		Type:           ErrorTypePermission,
		UserMessage:    fmt.Sprintf("Insufficient permissions. This command requires %s level.", levelName),
		InternalDetail: fmt.Sprintf("required_level=%s", levelName),
	}
}

// NewInvalidSyntaxError creates a validation error carrying the correct usage
func NewInvalidSyntaxError(commandName, correctSyntax string) *BotError {
	return &BotError{
		Type:           ErrorTypeValidation,
		UserMessage:    fmt.Sprintf("Invalid syntax. Usage: %s", correctSyntax),
		InternalDetail: fmt.Sprintf("command=%s", commandName),
	}
}

// NewValidationError creates an error for invalid input data
func NewValidationError(message string) *BotError {
	return &BotError{
		Type:        ErrorTypeValidation,
		UserMessage: message,
	}
}

// NewNotFoundError creates an error for resources that don't exist
func NewNotFoundError(resourceType, resourceName string) *BotError {
	return &BotError{
		Type:           ErrorTypeNotFound,
		UserMessage:    fmt.Sprintf("%s '%s' not found.", resourceType, resourceName),
		InternalDetail: fmt.Sprintf("resource_type=%s, resource_name=%s", resourceType, resourceName),
	}
}

// NewUnexpectedError creates an error for unexpected failures
func NewUnexpectedError(err error) *BotError {
	return &BotError{
		Type:          ErrorTypeUnexpected,
		UserMessage:   "An unexpected error occurred. Please try again later.",
		InternalError: err,
	}
}

// IsBotError checks if err or anything it wraps is a BotError
func IsBotError(err error) bool {
	_, ok := AsBotError(err)
	return ok
}

// AsBotError finds the first BotError in err's chain
func AsBotError(err error) (*BotError, bool) {
	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr, true
	}
	return nil, false
}
