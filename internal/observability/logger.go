// Package observability wires the resolver metrics registry into the rest of the application.
package observability

import "github.com/tphakala/imagefinder/internal/logger"

// GetLogger returns the observability module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
