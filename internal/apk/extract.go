package apk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// Extractor classifies entries one at a time and accumulates Artifacts.
type Extractor struct {
	matcher   *Matcher
	logger    *zap.Logger
	artifacts *Artifacts
}

// NewExtractor creates an Extractor for the given source name.
// A nil matcher uses DefaultMatcher; a nil logger discards output.
func NewExtractor(source string, matcher *Matcher, logger *zap.Logger) *Extractor {
	if matcher == nil {
		matcher = DefaultMatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		matcher:   matcher,
		logger:    logger,
		artifacts: &Artifacts{Source: source},
	}
}

// Add reads one entry. Entries without a role are not read.
func (e *Extractor) Add(name string, r io.Reader) error {
	role := e.matcher.Classify(name)
	if role == RoleNone {
		return nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s entry %s: %w", role, name, err)
	}

	switch role {
	case RoleSchema:
		if err := e.duplicate(name, e.artifacts.HasSchema()); err != nil {
			return err
		}
		e.artifacts.SetSchema(name, string(data))
	case RoleSettings:
		if err := e.duplicate(name, e.artifacts.HasSettings()); err != nil {
			return err
		}
		e.artifacts.SetSettings(data)
	case RoleDevFidelity:
		e.artifacts.DevFidelityParams = append(e.artifacts.DevFidelityParams, Asset{Name: name, Data: data})
	}

	e.logger.Debug("Loaded artifact",
		zap.String("entry", name),
		zap.Stringer("role", role),
		zap.Int("bytes", len(data)))
	return nil
}

func (e *Extractor) duplicate(name string, seen bool) error {
	if !seen {
		return nil
	}
	if e.matcher.Duplicates == DuplicateReject {
		return fmt.Errorf("%w: %s", ErrDuplicateArtifact, name)
	}
	e.logger.Warn("Duplicate artifact entry, keeping the last one", zap.String("entry", name))
	e.artifacts.Duplicates = append(e.artifacts.Duplicates, name)
	return nil
}

// Artifacts returns what has been extracted so far.
func (e *Extractor) Artifacts() *Artifacts {
	return e.artifacts
}

// Extract reads artifacts from path, which is either a zip archive or a
// directory holding an unpacked package.
func Extract(ctx context.Context, path string, matcher *Matcher, logger *zap.Logger) (*Artifacts, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ExtractFS(ctx, path, os.DirFS(path), matcher, logger)
	}
	return ExtractZip(ctx, path, matcher, logger)
}

// ExtractZip reads the artifacts from a zip archive such as an APK.
// Unreadable entries are logged and skipped; duplicate rejection and
// cancellation abort extraction.
func ExtractZip(ctx context.Context, archivePath string, matcher *Matcher, logger *zap.Logger) (*Artifacts, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	e := NewExtractor(archivePath, matcher, logger)
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if err := e.addZipFile(f); err != nil {
			if isFatal(err) {
				return nil, err
			}
			e.logger.Warn("Can not parse archive entry", zap.String("entry", f.Name), zap.Error(err))
		}
	}
	return e.Artifacts(), nil
}

func (e *Extractor) addZipFile(f *zip.File) error {
	if e.matcher.Classify(f.Name) == RoleNone {
		return nil
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	return e.Add(f.Name, rc)
}

// ExtractFS reads the artifacts from an unpacked package tree. Entry names
// are slash-separated paths relative to the root of fsys, walked in lexical
// order.
func ExtractFS(ctx context.Context, source string, fsys fs.FS, matcher *Matcher, logger *zap.Logger) (*Artifacts, error) {
	e := NewExtractor(source, matcher, logger)
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || e.matcher.Classify(name) == RoleNone {
			return nil
		}
		f, err := fsys.Open(name)
		if err != nil {
			e.logger.Warn("Can not open entry", zap.String("entry", name), zap.Error(err))
			return nil
		}
		defer f.Close()
		if err := e.Add(name, f); err != nil {
			if isFatal(err) {
				return err
			}
			e.logger.Warn("Can not parse entry", zap.String("entry", name), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.Artifacts(), nil
}

func isFatal(err error) bool {
	return errors.Is(err, ErrDuplicateArtifact)
}
