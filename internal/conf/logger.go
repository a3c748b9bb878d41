// Package conf provides configuration management for imagefinder.
package conf

import "github.com/tphakala/imagefinder/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the global logger each time because the
// central logger is configured after the settings are loaded.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
