package compiler

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jhump/protoreflect/desc/protoparse"
	"go.uber.org/zap"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// BuiltinCompiler parses schemas in-process without a protoc binary.
type BuiltinCompiler struct {
	logger *zap.Logger
}

// NewBuiltin creates a BuiltinCompiler. A nil logger is replaced by a no-op.
func NewBuiltin(logger *zap.Logger) *BuiltinCompiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuiltinCompiler{logger: logger}
}

// Compile parses src and links it with no dependencies.
func (c *BuiltinCompiler) Compile(ctx context.Context, src Source) (protoreflect.FileDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := src.FileName()
	content := src.Content
	if content == nil {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		content = data
	}

	var diag strings.Builder
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{name: string(content)}),
		ErrorReporter: func(err protoparse.ErrorWithPos) error {
			diag.WriteString(err.Error())
			diag.WriteByte('\n')
			return nil
		},
	}

	c.logger.Debug("Parsing schema in-process", zap.String("file", name))
	files, err := parser.ParseFiles(name)
	if err != nil {
		return nil, &CompilationError{File: name, Stderr: diag.String(), Err: err}
	}

	set := &descriptorpb.FileDescriptorSet{}
	for _, f := range files {
		set.File = append(set.File, f.AsFileDescriptorProto())
	}
	return buildFile(name, set, diag.String())
}

// Verify BuiltinCompiler implements Resolver at compile time.
var _ Resolver = (*BuiltinCompiler)(nil)
