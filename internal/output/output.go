package output

import (
	"fmt"
)

// Output combines colored terminal logging with file-based error logging
type Output struct {
	Logger      Logger
	ErrorLogger *ErrorLogger
}

// NewOutput creates a new Output with both terminal and file logging
func NewOutput(logger Logger, opts FileOptions) (*Output, error) {
	if err := EnsureLogDirectory(opts.Path); err != nil {
		return nil, fmt.Errorf("failed to ensure log directory: %w", err)
	}

	return &Output{
		Logger:      logger,
		ErrorLogger: NewErrorLogger(opts),
	}, nil
}

// LogErrorToFile logs an error to the terminal and the error log file
func (o *Output) LogErrorToFile(errorType, errorMessage string, err error) {
	o.LogErrorWithRequestID(errorType, errorMessage, err, "")
}

// LogErrorWithRequestID is LogErrorToFile with a request id attached
func (o *Output) LogErrorWithRequestID(errorType, errorMessage string, err error, requestID string) {
	if err != nil {
		o.Logger.Error("%s: %s - %v", errorType, errorMessage, err)
	} else {
		o.Logger.Error("%s: %s", errorType, errorMessage)
	}

	if logErr := o.ErrorLogger.LogErrorWithRequestID(errorType, errorMessage, err, requestID); logErr != nil {
		o.Logger.Error("Failed to write to error log: %v", logErr)
	}
}

// Close flushes and closes the error log
func (o *Output) Close() error {
	return o.ErrorLogger.Close()
}
