package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/ShayCichocki/tfvalidate/internal/apk"
	"github.com/ShayCichocki/tfvalidate/internal/compiler"
	"github.com/ShayCichocki/tfvalidate/internal/validation"
)

const (
	// AnnotationMessage is the schema message describing annotations.
	AnnotationMessage protoreflect.Name = "Annotation"
	// FidelityParamsMessage is the schema message describing fidelity parameters.
	FidelityParamsMessage protoreflect.Name = "FidelityParams"
)

// Orchestrator validates tuning-fork packages. It holds no per-run state and
// may be used for many runs, including concurrent ones.
type Orchestrator struct {
	resolver    compiler.Resolver
	logger      *zap.Logger
	matcher     *apk.Matcher
	devFidelity validation.DevFidelityOptions
	emitter     *EventEmitter
	clock       func() time.Time
}

// New creates an Orchestrator.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.Resolver == nil {
		return nil, errors.New("resolver is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Orchestrator{
		resolver:    req.Resolver,
		logger:      o.logger,
		matcher:     o.matcher,
		devFidelity: o.devFidelity,
		emitter:     o.emitter,
		clock:       o.clock,
	}, nil
}

// ValidateArchive extracts the artifacts at path (an APK, any zip archive or
// an unpacked directory) and validates them.
func (o *Orchestrator) ValidateArchive(ctx context.Context, path string) (*Result, error) {
	r := o.newRun(path)

	var artifacts *apk.Artifacts
	err := r.stage(StageExtract, func() error {
		a, err := apk.Extract(ctx, path, o.matcher, o.logger.Named("apk"))
		artifacts = a
		return err
	})
	if err != nil {
		return r.fail(err)
	}
	return r.validate(ctx, artifacts)
}

// Validate checks already extracted artifacts.
//
// A nil Result and an error are returned when the schema or settings is
// missing, when the schema does not compile or lacks the Annotation or
// FidelityParams message, or when ctx is cancelled. Structural problems are
// not errors; they are recorded in Result.Errors.
func (o *Orchestrator) Validate(ctx context.Context, artifacts *apk.Artifacts) (*Result, error) {
	if artifacts == nil {
		return nil, errors.New("artifacts are required")
	}
	return o.newRun(artifacts.Source).validate(ctx, artifacts)
}

// run is the state of a single validation.
type run struct {
	o      *Orchestrator
	id     string
	logger *zap.Logger
	result *Result
}

func (o *Orchestrator) newRun(source string) *run {
	id := uuid.NewString()
	r := &run{
		o:      o,
		id:     id,
		logger: o.logger.With(zap.String("run_id", id)),
		result: &Result{
			RunID:     id,
			Archive:   source,
			Errors:    validation.NewCollector(),
			StartedAt: o.clock(),
		},
	}
	r.logger.Debug("Validation started", zap.String("archive", source))
	r.emit(Event{Type: EventRunStarted, Message: source})
	return r
}

func (r *run) validate(ctx context.Context, a *apk.Artifacts) (*Result, error) {
	if err := a.Require(); err != nil {
		return r.fail(err)
	}
	r.result.Duplicates = a.Duplicates

	var annotation, fidelity protoreflect.MessageDescriptor
	err := r.stage(StageCompile, func() error {
		fd, err := r.o.resolver.Compile(ctx, compiler.Source{
			Name:    a.SchemaFileName(),
			Content: []byte(a.Schema),
		})
		if err != nil {
			return err
		}
		if annotation, err = compiler.FindMessage(fd, AnnotationMessage); err != nil {
			return err
		}
		fidelity, err = compiler.FindMessage(fd, FidelityParamsMessage)
		return err
	})
	if err != nil {
		return r.fail(err)
	}
	r.logDescriptor(annotation)
	r.logDescriptor(fidelity)

	errs := r.result.Errors
	var sizes []int

	var g errgroup.Group
	g.Go(func() error {
		return r.stage(StageAnnotation, func() error {
			sizes = validation.ValidateAnnotation(annotation, errs)
			return nil
		})
	})
	g.Go(func() error {
		return r.stage(StageFidelityParams, func() error {
			validation.ValidateFidelityParams(fidelity, errs)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return r.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}
	r.result.EnumSizes = sizes

	checkSettings := !errs.HasAnnotationErrors()
	checkDevFidelity := !errs.HasFidelityParamsErrors()
	if !checkSettings {
		r.skip(StageSettings, "Annotation message has errors")
	}
	if !checkDevFidelity {
		r.skip(StageDevFidelityParams, "FidelityParams message has errors")
	}

	var settingsGroup errgroup.Group
	if checkSettings {
		settingsGroup.Go(func() error {
			return r.stage(StageSettings, func() error {
				r.result.Settings = validation.ValidateSettings(sizes, a.Settings, errs)
				return nil
			})
		})
	}
	if checkDevFidelity {
		settingsGroup.Go(func() error {
			return r.stage(StageDevFidelityParams, func() error {
				validation.ValidateDevFidelityParams(fidelity, a.DevFidelityParams, r.o.devFidelity, errs)
				return nil
			})
		})
	}
	if err := settingsGroup.Wait(); err != nil {
		return r.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	if s := r.result.Settings; s != nil {
		if ce := r.logger.Check(zap.DebugLevel, "Loaded settings"); ce != nil {
			ce.Write(zap.String("settings", s.Redacted().String()))
		}
	}

	return r.finish(), nil
}

// stage runs fn as the named stage and reports its progress.
func (r *run) stage(s Stage, fn func() error) error {
	start := r.o.clock()
	r.emit(Event{Type: EventStageStarted, Stage: s})

	err := fn()

	r.emit(Event{
		Type:       EventStageCompleted,
		Stage:      s,
		Error:      err,
		ErrorCount: r.result.Errors.ErrorCount(),
		Duration:   r.o.clock().Sub(start),
	})
	return err
}

func (r *run) skip(s Stage, reason string) {
	r.logger.Info("Skipping stage", zap.String("stage", string(s)), zap.String("reason", reason))
	r.result.Skipped = append(r.result.Skipped, s)
	r.emit(Event{Type: EventStageSkipped, Stage: s, Message: reason})
}

func (r *run) fail(err error) (*Result, error) {
	r.logger.Debug("Validation aborted", zap.Error(err))
	r.emit(Event{Type: EventRunFailed, Error: err})
	return nil, err
}

func (r *run) finish() *Result {
	r.result.Duration = r.o.clock().Sub(r.result.StartedAt)
	count := r.result.Errors.ErrorCount()
	r.logger.Debug("Validation finished",
		zap.Int("errors", count),
		zap.Duration("duration", r.result.Duration))
	r.emit(Event{Type: EventRunCompleted, ErrorCount: count, Duration: r.result.Duration})
	return r.result
}

func (r *run) emit(ev Event) {
	if r.o.emitter == nil {
		return
	}
	ev.RunID = r.id
	ev.Timestamp = r.o.clock()
	r.o.emitter.Emit(ev)
}

// logDescriptor logs a message definition in protobuf text format.
func (r *run) logDescriptor(md protoreflect.MessageDescriptor) {
	if ce := r.logger.Check(zap.DebugLevel, "Loaded message"); ce != nil {
		ce.Write(
			zap.String("message", string(md.FullName())),
			zap.String("descriptor", prototext.Format(protodesc.ToDescriptorProto(md))),
		)
	}
}
