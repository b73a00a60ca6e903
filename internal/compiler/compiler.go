// Package compiler turns protobuf schema source into descriptors.
//
// Two Resolver implementations are provided. ExternalCompiler shells out to
// protoc and decodes the descriptor set it writes to standard output.
// BuiltinCompiler parses the source in-process. Both build the resulting
// file against an empty registry, so only self-contained single-file schemas
// compile.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

var (
	// ErrCompilation matches every *CompilationError.
	ErrCompilation = errors.New("schema compilation failed")
	// ErrDescriptorNotFound means the compiler output lacks the requested file.
	ErrDescriptorNotFound = errors.New("descriptor not found in compiler output")
	// ErrMessageNotFound means a required message is missing from the schema.
	ErrMessageNotFound = errors.New("required message not found")
	// ErrTimeout means the compiler did not finish in time.
	ErrTimeout = errors.New("schema compiler timed out")
	// ErrMalformedOutput means the compiler output could not be decoded as a
	// descriptor set. It indicates a broken compiler setup rather than a bad
	// schema and is not a CompilationError.
	ErrMalformedOutput = errors.New("compiler output is not a descriptor set")
)

// Source is a schema file to compile.
type Source struct {
	// Name is the logical file name, e.g. "dev_tuningfork.proto".
	// Defaults to the base name of Path.
	Name string
	// Path is the file on disk. Optional when Content is set.
	Path string
	// Content is the schema text. When nil it is read from Path.
	Content []byte
}

// FileName returns the logical file name of the source.
func (s Source) FileName() string {
	if s.Name != "" {
		return s.Name
	}
	return filepath.Base(s.Path)
}

// Resolver compiles schema source into a file descriptor.
type Resolver interface {
	Compile(ctx context.Context, src Source) (protoreflect.FileDescriptor, error)
}

// CompilationError reports a schema that could not be compiled.
type CompilationError struct {
	// File is the logical file name.
	File string
	// Stderr holds the compiler diagnostics, if any were captured.
	Stderr string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *CompilationError) Error() string {
	if errors.Is(e.Err, ErrDescriptorNotFound) {
		return fmt.Sprintf("Descriptor for [%s] does not exist.", e.File)
	}
	return fmt.Sprintf("compile %s: %v", e.File, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CompilationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCompilation) true for every CompilationError.
func (e *CompilationError) Is(target error) bool {
	return target == ErrCompilation
}

// buildFile finds name in set and links it with no dependencies.
func buildFile(name string, set *descriptorpb.FileDescriptorSet, stderr string) (protoreflect.FileDescriptor, error) {
	for _, fdp := range set.GetFile() {
		if fdp.GetName() != name {
			continue
		}
		fd, err := protodesc.NewFile(fdp, new(protoregistry.Files))
		if err != nil {
			return nil, &CompilationError{File: name, Stderr: stderr, Err: err}
		}
		return fd, nil
	}
	return nil, &CompilationError{File: name, Stderr: stderr, Err: ErrDescriptorNotFound}
}

// FindMessage returns the top-level message called name, or a
// CompilationError wrapping ErrMessageNotFound.
func FindMessage(fd protoreflect.FileDescriptor, name protoreflect.Name) (protoreflect.MessageDescriptor, error) {
	md := fd.Messages().ByName(name)
	if md == nil {
		return nil, &CompilationError{
			File: fd.Path(),
			Err:  fmt.Errorf("%w: %s", ErrMessageNotFound, name),
		}
	}
	return md, nil
}
