package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/tfvalidate/internal/compiler"
	"github.com/ShayCichocki/tfvalidate/internal/config"
	"github.com/ShayCichocki/tfvalidate/internal/logging"
	"github.com/ShayCichocki/tfvalidate/internal/orchestrator"
	"github.com/ShayCichocki/tfvalidate/internal/report"
	"github.com/ShayCichocki/tfvalidate/internal/validation"
	"github.com/ShayCichocki/tfvalidate/internal/watch"
)

func runValidate(cmd *cobra.Command, opts *rootOptions, stdout, stderr io.Writer) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: opts.configFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	if err := cfg.Validate(); err != nil {
		return fatalf("invalid configuration: %v", err)
	}

	if opts.apkPath == "" {
		return fatalf("--apk-path is required")
	}
	if _, err := os.Stat(opts.apkPath); err != nil {
		return fatalf("APK %s does not exist", opts.apkPath)
	}

	logger, err := logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer logger.Sync()

	resolver, err := newResolver(cfg, logger)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	matcher, err := cfg.Matcher()
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	emitter := orchestrator.NewEventEmitter(64, logger)
	drained := drainEvents(emitter, logger.Named("events"))
	defer func() {
		emitter.Close()
		<-drained
	}()

	orch, err := orchestrator.New(
		orchestrator.RequiredConfig{Resolver: resolver},
		orchestrator.WithLogger(logger.Named("orchestrator")),
		orchestrator.WithMatcher(matcher),
		orchestrator.WithDevFidelityOptions(validation.DevFidelityOptions{
			RejectUnknownFields: cfg.Validation.RejectUnknownFields,
		}),
		orchestrator.WithEventEmitter(emitter),
	)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	useColor := cfg.Report.Color && !color.NoColor
	v := &validator{
		orch:     orch,
		writer:   report.NewWriter(stdout, format, useColor),
		stderr:   stderr,
		useColor: useColor,
	}
	ctx := cmd.Context()

	if !opts.watch {
		if code := v.validate(ctx, opts.apkPath); code != exitValid {
			return &exitError{code: code}
		}
		return nil
	}

	w, err := watch.New(opts.apkPath, watch.DefaultDebounce, logger.Named("watch"))
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer w.Close()

	logger.Info("Watching for changes", zap.String("path", opts.apkPath))
	return w.Run(ctx, func(ctx context.Context) {
		v.validate(ctx, opts.apkPath)
	})
}

// newResolver picks the schema compiler the config asks for.
func newResolver(cfg *config.Config, logger *zap.Logger) (compiler.Resolver, error) {
	if cfg.Compiler.Builtin {
		return compiler.NewBuiltin(logger.Named("compiler")), nil
	}
	if cfg.Compiler.Path == "" {
		return nil, errors.New("--protoc is required unless --builtin is set")
	}
	if _, err := os.Stat(cfg.Compiler.Path); err != nil {
		return nil, fmt.Errorf("protoc %s does not exist", cfg.Compiler.Path)
	}
	return compiler.NewExternal(cfg.Compiler.Path,
		compiler.WithOutput(cfg.Compiler.Output),
		compiler.WithTimeout(cfg.Compiler.Timeout),
		compiler.WithLogger(logger.Named("compiler")),
	)
}

// validator runs one validation and reports it.
type validator struct {
	orch     *orchestrator.Orchestrator
	writer   *report.Writer
	stderr   io.Writer
	useColor bool
}

// validate returns the exit status for a single run.
func (v *validator) validate(ctx context.Context, path string) int {
	res, err := v.orch.ValidateArchive(ctx, path)
	if err != nil {
		v.printFatal(err)
		return exitFatal
	}
	if err := v.writer.Write(res); err != nil {
		v.printFatal(err)
		return exitFatal
	}
	if !res.Valid() {
		return exitInvalid
	}
	return exitValid
}

// printFatal prints a fatal error with any compiler diagnostics below it.
func (v *validator) printFatal(err error) {
	c := color.New(color.FgRed)
	if v.useColor {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	fmt.Fprintf(v.stderr, "%s %v\n", c.Sprint("✗"), err)

	var ce *compiler.CompilationError
	if errors.As(err, &ce) && ce.Stderr != "" {
		for _, line := range strings.Split(strings.TrimRight(ce.Stderr, "\n"), "\n") {
			fmt.Fprintf(v.stderr, "    %s\n", line)
		}
	}
}

// drainEvents logs orchestrator events at debug level until the emitter is
// closed.
func drainEvents(emitter *orchestrator.EventEmitter, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range emitter.Events() {
			fields := []zap.Field{
				zap.String("run_id", ev.RunID),
				zap.String("type", string(ev.Type)),
			}
			if ev.Stage != "" {
				fields = append(fields, zap.String("stage", string(ev.Stage)))
			}
			if ev.Duration > 0 {
				fields = append(fields, zap.Duration("duration", ev.Duration))
			}
			if ev.Message != "" {
				fields = append(fields, zap.String("detail", ev.Message))
			}
			if ev.Error != nil {
				fields = append(fields, zap.Error(ev.Error))
			}
			logger.Debug("Orchestrator event", fields...)
		}
	}()
	return done
}
