package errors

import (
	"fmt"

	"github.com/yourusername/jolt/internal/output"
)

const unexpectedUserMessage = "An unexpected error occurred. Please try again later."

// ErrorHandler handles errors by logging them and returning user-friendly messages
type ErrorHandler struct {
	output *output.Output
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(output *output.Output) *ErrorHandler {
	return &ErrorHandler{
		output: output,
	}
}

// Handle logs err to terminal and file and returns the message for the user
func (h *ErrorHandler) Handle(err error) string {
	if err == nil {
		return ""
	}

	if botErr, ok := AsBotError(err); ok {
		h.output.LogErrorWithRequestID(string(botErr.Type), botErr.UserMessage, botErr.InternalError, botErr.RequestID)
		return botErr.UserMessage
	}

	h.output.LogErrorToFile(string(ErrorTypeUnexpected), "Unexpected error occurred", err)
	return unexpectedUserMessage
}

// HandleWithContext processes an error with additional context
func (h *ErrorHandler) HandleWithContext(err error, context string) string {
	if err == nil {
		return ""
	}

	contextualErr := fmt.Errorf("%s: %w", context, err)

	if botErr, ok := AsBotError(err); ok {
		h.output.LogErrorWithRequestID(
			string(botErr.Type),
			fmt.Sprintf("%s: %s", context, botErr.UserMessage),
			contextualErr,
			botErr.RequestID,
		)
		return botErr.UserMessage
	}

	h.output.LogErrorToFile(
		string(ErrorTypeUnexpected),
		fmt.Sprintf("%s: unexpected error", context),
		contextualErr,
	)

	return unexpectedUserMessage
}

// LogError logs an error without returning a message (for non-critical errors)
func (h *ErrorHandler) LogError(err error, context string) {
	_ = h.HandleWithContext(err, context)
}
