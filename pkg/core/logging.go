package core

import (
	"log"
	"os"
	"strings"
)

const loggerBasePrefix = "funnelrelay"

// NewLogger returns a std logger prefixed with the service name and an optional component.
func NewLogger(component string) *log.Logger {
	prefix := loggerBasePrefix
	if component = strings.TrimSpace(component); component != "" {
		prefix += "/" + component
	}
	return log.New(os.Stdout, prefix+" ", log.LstdFlags|log.Lmicroseconds)
}

// WithRequestID derives a logger that tags every line with the request id.
func WithRequestID(logger *log.Logger, requestID string) *log.Logger {
	if logger == nil {
		logger = log.Default()
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return logger
	}
	return log.New(logger.Writer(), logger.Prefix()+"request_id="+requestID+" ", logger.Flags())
}

// NewLoggerFrom derives a component logger that writes where parent writes.
func NewLoggerFrom(parent *log.Logger, component string) *log.Logger {
	if parent == nil {
		return NewLogger(component)
	}
	prefix := loggerBasePrefix
	if component = strings.TrimSpace(component); component != "" {
		prefix += "/" + component
	}
	return log.New(parent.Writer(), prefix+" ", parent.Flags())
}
