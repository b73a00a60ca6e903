package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	iexec "github.com/ShayCichocki/tfvalidate/internal/exec"
)

// DefaultOutput is where protoc is asked to write the descriptor set.
const DefaultOutput = "/dev/stdout"

// ExternalCompiler runs protoc as a child process.
type ExternalCompiler struct {
	protoc  string
	output  string
	timeout time.Duration
	runner  iexec.CommandRunner
	logger  *zap.Logger
}

// ExternalOption configures an ExternalCompiler.
type ExternalOption func(*ExternalCompiler)

// WithRunner sets the command runner (mainly for testing).
func WithRunner(r iexec.CommandRunner) ExternalOption {
	return func(c *ExternalCompiler) { c.runner = r }
}

// WithOutput overrides the -o target.
func WithOutput(target string) ExternalOption {
	return func(c *ExternalCompiler) { c.output = target }
}

// WithTimeout bounds a single compiler run. Zero disables the bound.
func WithTimeout(d time.Duration) ExternalOption {
	return func(c *ExternalCompiler) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ExternalOption {
	return func(c *ExternalCompiler) { c.logger = l }
}

// NewExternal creates an ExternalCompiler for the protoc binary at path.
func NewExternal(path string, opts ...ExternalOption) (*ExternalCompiler, error) {
	if path == "" {
		return nil, errors.New("compiler path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve compiler path: %w", err)
	}

	c := &ExternalCompiler{
		protoc: abs,
		output: DefaultOutput,
		runner: iexec.NewRunner(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CommandLine returns the protoc arguments for compiling name from absPath:
//
//	-o <output> -I <name>=<absPath> <name>
func (c *ExternalCompiler) CommandLine(name, absPath string) []string {
	return []string{
		"-o", c.output,
		"-I", name + "=" + absPath,
		name,
	}
}

// Compile runs protoc on src. Sources without a Path are written to a
// temporary directory first.
func (c *ExternalCompiler) Compile(ctx context.Context, src Source) (protoreflect.FileDescriptor, error) {
	name := src.FileName()
	path := src.Path
	if path == "" {
		dir, err := os.MkdirTemp("", "tfvalidate-")
		if err != nil {
			return nil, fmt.Errorf("create temp dir: %w", err)
		}
		defer os.RemoveAll(dir)

		path = filepath.Join(dir, name)
		if err := os.WriteFile(path, src.Content, 0644); err != nil {
			return nil, fmt.Errorf("write schema: %w", err)
		}
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve schema path: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := c.CommandLine(name, absPath)
	c.logger.Debug("Running schema compiler", zap.String("protoc", c.protoc), zap.Strings("args", args))

	res, err := c.runner.Run(runCtx, "", c.protoc, args...)
	if err != nil {
		return nil, c.runError(ctx, runCtx, name, res, err)
	}
	if len(res.Stderr) > 0 {
		c.logger.Debug("Schema compiler diagnostics", zap.ByteString("stderr", res.Stderr))
	}

	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(res.Stdout, set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return buildFile(name, set, string(res.Stderr))
}

func (c *ExternalCompiler) runError(ctx, runCtx context.Context, name string, res *iexec.Result, err error) error {
	cerr := &CompilationError{File: name}
	if res != nil {
		cerr.Stderr = string(res.Stderr)
	}

	switch {
	case ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		cerr.Err = fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	case ctx.Err() != nil:
		cerr.Err = fmt.Errorf("compiler interrupted: %w", ctx.Err())
	case res != nil:
		cerr.Err = fmt.Errorf("compiler exited with status %d", res.ExitCode)
	default:
		cerr.Err = fmt.Errorf("run compiler: %w", err)
	}
	return cerr
}

// Verify ExternalCompiler implements Resolver at compile time.
var _ Resolver = (*ExternalCompiler)(nil)
