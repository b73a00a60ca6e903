package apk

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type entry struct {
	name string
	data string
}

// writeZip builds a zip archive in a temp dir and returns its path.
func writeZip(t *testing.T, entries ...entry) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.name)
		if err != nil {
			t.Fatalf("create entry %s: %v", e.name, err)
		}
		if _, err := f.Write([]byte(e.data)); err != nil {
			t.Fatalf("write entry %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	path := filepath.Join(t.TempDir(), "app.apk")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

func TestMatcher_Classify(t *testing.T) {
	m := DefaultMatcher()

	tests := []struct {
		name string
		want Role
	}{
		{"assets/tuningfork/dev_tuningfork.proto", RoleSchema},
		{"assets/tuningfork/tuningfork_settings.bin", RoleSettings},
		{"assets/tuningfork/dev_tuningfork_fidelityparams_1.bin", RoleDevFidelity},
		{"other/dir/dev_tuningfork_fidelityparams_high.bin", RoleDevFidelity},
		{"assets/tuningfork/dev_tuningfork_fidelityparams_.bin", RoleNone},
		{"assets/tuningfork/dev_tuningfork_fidelityparams_0123456789abcdef.bin", RoleNone},
		{"lib/arm64-v8a/libgame.so", RoleNone},
		{"dev_tuningfork.proto", RoleNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Classify(tt.name); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewMatcher(t *testing.T) {
	m, err := NewMatcher("schema.proto", "", `fp_\d+\.bin$`, "reject")
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	if m.SchemaEntry != "schema.proto" {
		t.Errorf("expected custom schema entry, got %q", m.SchemaEntry)
	}
	if m.SettingsEntry != DefaultSettingsEntry {
		t.Errorf("expected default settings entry, got %q", m.SettingsEntry)
	}
	if m.Duplicates != DuplicateReject {
		t.Errorf("expected reject policy, got %q", m.Duplicates)
	}
	if m.Classify("x/fp_12.bin") != RoleDevFidelity {
		t.Error("expected custom pattern to match")
	}

	if _, err := NewMatcher("", "", "(", ""); err == nil {
		t.Error("expected error for invalid pattern")
	}
	if _, err := NewMatcher("", "", "", "ignore"); err == nil {
		t.Error("expected error for unknown duplicate policy")
	}
}

func TestExtractZip(t *testing.T) {
	path := writeZip(t,
		entry{"AndroidManifest.xml", "<manifest/>"},
		entry{"assets/tuningfork/dev_tuningfork.proto", "syntax = \"proto2\";"},
		entry{"assets/tuningfork/tuningfork_settings.bin", "\x0a\x00"},
		entry{"assets/tuningfork/dev_tuningfork_fidelityparams_1.bin", "\x08\x01"},
		entry{"assets/tuningfork/dev_tuningfork_fidelityparams_2.bin", "\x08\x02"},
	)

	a, err := ExtractZip(context.Background(), path, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("ExtractZip failed: %v", err)
	}
	if err := a.Require(); err != nil {
		t.Fatalf("Require failed: %v", err)
	}

	if a.Source != path {
		t.Errorf("expected source %s, got %s", path, a.Source)
	}
	if a.Schema != "syntax = \"proto2\";" {
		t.Errorf("unexpected schema %q", a.Schema)
	}
	if a.SchemaFileName() != "dev_tuningfork.proto" {
		t.Errorf("expected schema file name dev_tuningfork.proto, got %s", a.SchemaFileName())
	}
	if !bytes.Equal(a.Settings, []byte{0x0a, 0x00}) {
		t.Errorf("unexpected settings %v", a.Settings)
	}

	want := []Asset{
		{Name: "assets/tuningfork/dev_tuningfork_fidelityparams_1.bin", Data: []byte{0x08, 0x01}},
		{Name: "assets/tuningfork/dev_tuningfork_fidelityparams_2.bin", Data: []byte{0x08, 0x02}},
	}
	if diff := cmp.Diff(want, a.DevFidelityParams); diff != "" {
		t.Errorf("dev fidelity params mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractZip_EmptySettingsStillPresent(t *testing.T) {
	path := writeZip(t,
		entry{"assets/tuningfork/dev_tuningfork.proto", "syntax = \"proto2\";"},
		entry{"assets/tuningfork/tuningfork_settings.bin", ""},
	)

	a, err := ExtractZip(context.Background(), path, nil, nil)
	if err != nil {
		t.Fatalf("ExtractZip failed: %v", err)
	}
	if err := a.Require(); err != nil {
		t.Errorf("expected zero-length settings to count as present, got %v", err)
	}
}

func TestArtifacts_Require(t *testing.T) {
	tests := []struct {
		name    string
		entries []entry
		missing string
	}{
		{"no schema", []entry{{"assets/tuningfork/tuningfork_settings.bin", "x"}}, "schema"},
		{"no settings", []entry{{"assets/tuningfork/dev_tuningfork.proto", "x"}}, "settings"},
		{"nothing", []entry{{"classes.dex", "x"}}, "schema, settings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ExtractZip(context.Background(), writeZip(t, tt.entries...), nil, nil)
			if err != nil {
				t.Fatalf("ExtractZip failed: %v", err)
			}

			err = a.Require()
			if !errors.Is(err, ErrMissingArtifact) {
				t.Fatalf("expected ErrMissingArtifact, got %v", err)
			}
			if !strings.HasSuffix(err.Error(), ": "+tt.missing) {
				t.Errorf("expected error naming %q, got %v", tt.missing, err)
			}
		})
	}
}

func TestExtractZip_Duplicates(t *testing.T) {
	entries := []entry{
		{"assets/tuningfork/dev_tuningfork.proto", "first"},
		{"assets/tuningfork/tuningfork_settings.bin", "s"},
		{"assets/tuningfork/dev_tuningfork.proto", "second"},
	}

	t.Run("warn keeps last", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		a, err := ExtractZip(context.Background(), writeZip(t, entries...), nil, zap.New(core))
		if err != nil {
			t.Fatalf("ExtractZip failed: %v", err)
		}
		if a.Schema != "second" {
			t.Errorf("expected last schema to win, got %q", a.Schema)
		}
		if diff := cmp.Diff([]string{"assets/tuningfork/dev_tuningfork.proto"}, a.Duplicates); diff != "" {
			t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
		}
		if logs.FilterMessageSnippet("Duplicate").Len() != 1 {
			t.Errorf("expected one duplicate warning, got %d", logs.Len())
		}
	})

	t.Run("reject fails", func(t *testing.T) {
		m, err := NewMatcher("", "", "", "reject")
		if err != nil {
			t.Fatalf("NewMatcher failed: %v", err)
		}
		_, err = ExtractZip(context.Background(), writeZip(t, entries...), m, nil)
		if !errors.Is(err, ErrDuplicateArtifact) {
			t.Errorf("expected ErrDuplicateArtifact, got %v", err)
		}
	})
}

func TestExtractZip_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.apk")
	if err := os.WriteFile(path, []byte("not a zip"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := ExtractZip(context.Background(), path, nil, nil); err == nil {
		t.Error("expected error for a non-zip file")
	}
}

func TestExtractZip_Cancelled(t *testing.T) {
	path := writeZip(t, entry{"assets/tuningfork/dev_tuningfork.proto", "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ExtractZip(ctx, path, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExtractFS(t *testing.T) {
	fsys := fstest.MapFS{
		"assets/tuningfork/dev_tuningfork.proto":                {Data: []byte("schema")},
		"assets/tuningfork/tuningfork_settings.bin":             {Data: []byte{0x0a, 0x00}},
		"assets/tuningfork/dev_tuningfork_fidelityparams_b.bin": {Data: []byte{0x08, 0x02}},
		"assets/tuningfork/dev_tuningfork_fidelityparams_a.bin": {Data: []byte{0x08, 0x01}},
		"res/values/strings.xml":                                {Data: []byte("<resources/>")},
	}

	a, err := ExtractFS(context.Background(), "unpacked", fsys, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("ExtractFS failed: %v", err)
	}
	if err := a.Require(); err != nil {
		t.Fatalf("Require failed: %v", err)
	}

	var names []string
	for _, p := range a.DevFidelityParams {
		names = append(names, p.Name)
	}
	want := []string{
		"assets/tuningfork/dev_tuningfork_fidelityparams_a.bin",
		"assets/tuningfork/dev_tuningfork_fidelityparams_b.bin",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_Directory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "assets", "tuningfork")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dev_tuningfork.proto"), []byte("schema"), 0644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tuningfork_settings.bin"), nil, 0644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	a, err := Extract(context.Background(), root, nil, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !a.HasSchema() || !a.HasSettings() {
		t.Errorf("expected schema and settings, got schema=%v settings=%v", a.HasSchema(), a.HasSettings())
	}
}

func TestExtract_MissingPath(t *testing.T) {
	_, err := Extract(context.Background(), filepath.Join(t.TempDir(), "missing.apk"), nil, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
