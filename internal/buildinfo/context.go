// Package buildinfo contains build-time metadata kept separate from user configuration
package buildinfo

import (
	"fmt"
	"runtime"
)

// UnknownValue is reported for metadata that was not injected at build time
const UnknownValue = "unknown"

// ContactURL is sent in the User-Agent so media hosts can reach the operator
const ContactURL = "https://github.com/tphakala/imagefinder"

// BuildInfo provides an interface for accessing build-time metadata.
type BuildInfo interface {
	Version() string
	BuildDate() string
}

// Context contains build-time metadata injected through ldflags in main.
type Context struct {
	version   string
	buildDate string
}

// NewContext creates a build context
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Version returns the Git version tag from the build
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the time the binary was built
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// UserAgent returns the User-Agent sent to remote hosts, in the form
// requested by the Wikimedia User-Agent policy:
// "imagefinder/<version> (<contact>) Go-HTTP-Client/<go version>".
func (c *Context) UserAgent() string {
	return fmt.Sprintf("imagefinder/%s (%s) Go-HTTP-Client/%s", c.Version(), ContactURL, runtime.Version())
}

var _ BuildInfo = (*Context)(nil)
