package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/tfvalidate/internal/apk"
	"github.com/ShayCichocki/tfvalidate/internal/compiler"
	"github.com/ShayCichocki/tfvalidate/internal/validation"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Resolver compiles the developer schema.
	Resolver compiler.Resolver
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	logger      *zap.Logger
	matcher     *apk.Matcher
	devFidelity validation.DevFidelityOptions
	emitter     *EventEmitter
	clock       func() time.Time
}

func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{
		logger:  zap.NewNop(),
		matcher: apk.DefaultMatcher(),
		clock:   time.Now,
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *orchestratorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMatcher sets how archive entries are classified.
func WithMatcher(m *apk.Matcher) Option {
	return func(o *orchestratorOptions) {
		if m != nil {
			o.matcher = m
		}
	}
}

// WithDevFidelityOptions tunes dev fidelity parameter parsing.
func WithDevFidelityOptions(opts validation.DevFidelityOptions) Option {
	return func(o *orchestratorOptions) { o.devFidelity = opts }
}

// WithEventEmitter publishes stage progress to e.
func WithEventEmitter(e *EventEmitter) Option {
	return func(o *orchestratorOptions) { o.emitter = e }
}

// WithClock sets the time source (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) {
		if now != nil {
			o.clock = now
		}
	}
}
