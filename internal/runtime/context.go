// Package runtime holds the objects a command needs while it runs. They are
// built once from the loaded settings and are not user configuration.
package runtime

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/viper"

	"github.com/tphakala/imagefinder/internal/buildinfo"
	"github.com/tphakala/imagefinder/internal/conf"
	"github.com/tphakala/imagefinder/internal/errors"
	"github.com/tphakala/imagefinder/internal/httpclient"
	"github.com/tphakala/imagefinder/internal/logger"
	"github.com/tphakala/imagefinder/internal/observability"
)

// SkipSetupAnnotation marks commands that run without loading settings
const SkipSetupAnnotation = "imagefinder/skip-setup"

// sentryFlushTimeout bounds how long Close waits for queued error reports
const sentryFlushTimeout = 2 * time.Second

// Context contains runtime state shared by the commands.
type Context struct {
	// BuildInfo holds version and build date injected at build time
	BuildInfo *buildinfo.Context

	// Settings is the effective configuration, nil until Setup
	Settings *conf.Settings

	// Client is the HTTP client shared by every probe
	Client *httpclient.Client

	// Metrics holds the resolver metrics registry
	Metrics *observability.Metrics

	central *logger.CentralLogger
	sentry  bool
}

// New creates a runtime context with build metadata only.
func New(build *buildinfo.Context) *Context {
	return &Context{BuildInfo: build}
}

// Setup loads the settings through v and builds the logger, metrics, error
// reporting and HTTP client from them.
func (c *Context) Setup(v *viper.Viper, configFile string) error {
	settings, err := conf.Load(v, configFile)
	if err != nil {
		return err
	}
	return c.Init(settings)
}

// Init builds the runtime objects from already loaded settings.
func (c *Context) Init(settings *conf.Settings) error {
	c.Settings = settings

	if settings.Debug {
		applyDebugLevel(&settings.Logging)
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "init-logger").
			Build()
	}
	logger.SetGlobal(central)
	c.central = central

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	c.Metrics = m
	errors.AddErrorHook(m.ErrorHook())

	c.initTelemetry()

	userAgent := settings.Resolver.UserAgent
	if userAgent == "" {
		userAgent = c.BuildInfo.UserAgent()
	}
	c.Client = httpclient.New(&httpclient.Config{
		DefaultTimeout: settings.Resolver.Timeout,
		UserAgent:      userAgent,
	})
	c.Client.SetAfterResponseHook(m.HTTPResponseHook())

	GetLogger().Debug("Runtime initialized",
		logger.String("version", c.BuildInfo.Version()),
		logger.String("user_agent", userAgent),
		logger.Duration("timeout", c.Client.Timeout()),
		logger.Bool("telemetry", c.sentry))
	return nil
}

// initTelemetry enables the Sentry reporter when a DSN is configured. A
// failed init only disables reporting.
func (c *Context) initTelemetry() {
	dsn := c.Settings.Telemetry.SentryDSN
	if dsn == "" {
		return
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      c.Settings.Telemetry.Environment,
		ServerName:       "", // keep the hostname out of events
		Release:          fmt.Sprintf("imagefinder@%s", c.BuildInfo.Version()),
	})
	if err != nil {
		GetLogger().Warn("Sentry initialization failed, error reporting disabled", logger.Error(err))
		return
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	c.sentry = true
}

// Close releases the HTTP client, flushes queued error reports and log output.
func (c *Context) Close() error {
	if c.Client != nil {
		c.Client.Close()
	}
	if c.sentry {
		sentry.Flush(sentryFlushTimeout)
		errors.SetTelemetryReporter(nil)
	}
	errors.ClearErrorHooks()
	if c.central != nil {
		return c.central.Close()
	}
	return nil
}

// applyDebugLevel lowers the default and console levels to debug
func applyDebugLevel(cfg *logger.LoggingConfig) {
	cfg.DefaultLevel = "debug"
	if cfg.Console != nil {
		cfg.Console.Level = "debug"
	}
}

// GetLogger returns the runtime module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("runtime")
}
