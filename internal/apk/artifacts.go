// Package apk extracts tuning fork artifacts from an application package.
//
// An APK is a zip archive. Three kinds of entries matter:
//   - the developer schema (assets/tuningfork/dev_tuningfork.proto)
//   - the compiled settings (assets/tuningfork/tuningfork_settings.bin)
//   - dev fidelity parameters (dev_tuningfork_fidelityparams_<n>.bin)
//
// Everything else is ignored.
package apk

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	// DefaultSchemaEntry is the archive entry holding the developer schema.
	DefaultSchemaEntry = "assets/tuningfork/dev_tuningfork.proto"
	// DefaultSettingsEntry is the archive entry holding the compiled settings.
	DefaultSettingsEntry = "assets/tuningfork/tuningfork_settings.bin"
	// DefaultDevFidelityPattern matches dev fidelity parameter entries.
	DefaultDevFidelityPattern = `dev_tuningfork_fidelityparams_.{1,15}\.bin`
)

var (
	// ErrMissingArtifact is returned when the schema or settings entry is absent.
	ErrMissingArtifact = errors.New("required artifact missing from archive")
	// ErrDuplicateArtifact is returned under DuplicateReject when the schema or
	// settings entry appears more than once.
	ErrDuplicateArtifact = errors.New("duplicate artifact in archive")
)

// Role classifies an archive entry.
type Role int

const (
	// RoleNone marks entries the validator does not use.
	RoleNone Role = iota
	// RoleSchema marks the developer schema source.
	RoleSchema
	// RoleSettings marks the compiled settings blob.
	RoleSettings
	// RoleDevFidelity marks a dev fidelity parameters blob.
	RoleDevFidelity
)

// String returns a short human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleSchema:
		return "schema"
	case RoleSettings:
		return "settings"
	case RoleDevFidelity:
		return "dev fidelity parameters"
	default:
		return "none"
	}
}

// DuplicatePolicy decides what happens when the schema or settings entry
// occurs more than once.
type DuplicatePolicy string

const (
	// DuplicateWarn keeps the last entry and records the duplicate.
	DuplicateWarn DuplicatePolicy = "warn"
	// DuplicateReject fails extraction with ErrDuplicateArtifact.
	DuplicateReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy validates a policy name.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DuplicateWarn, DuplicateReject:
		return p, nil
	case "":
		return DuplicateWarn, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (expected %q or %q)", s, DuplicateWarn, DuplicateReject)
	}
}

// Matcher maps entry names to roles.
type Matcher struct {
	// SchemaEntry is matched exactly.
	SchemaEntry string
	// SettingsEntry is matched exactly.
	SettingsEntry string
	// DevFidelityPattern is searched for anywhere in the entry name.
	DevFidelityPattern *regexp.Regexp
	// Duplicates is the duplicate schema/settings policy.
	Duplicates DuplicatePolicy
}

// DefaultMatcher returns a Matcher for the standard APK layout.
func DefaultMatcher() *Matcher {
	return &Matcher{
		SchemaEntry:        DefaultSchemaEntry,
		SettingsEntry:      DefaultSettingsEntry,
		DevFidelityPattern: regexp.MustCompile(DefaultDevFidelityPattern),
		Duplicates:         DuplicateWarn,
	}
}

// NewMatcher builds a Matcher from configuration values. Empty values fall
// back to the defaults.
func NewMatcher(schemaEntry, settingsEntry, devFidelityPattern, duplicates string) (*Matcher, error) {
	m := DefaultMatcher()
	if schemaEntry != "" {
		m.SchemaEntry = schemaEntry
	}
	if settingsEntry != "" {
		m.SettingsEntry = settingsEntry
	}
	if devFidelityPattern != "" {
		re, err := regexp.Compile(devFidelityPattern)
		if err != nil {
			return nil, fmt.Errorf("compile dev fidelity pattern: %w", err)
		}
		m.DevFidelityPattern = re
	}
	policy, err := ParseDuplicatePolicy(duplicates)
	if err != nil {
		return nil, err
	}
	m.Duplicates = policy
	return m, nil
}

// Classify returns the role of an entry name. Exact schema and settings
// matches take precedence over the dev fidelity pattern.
func (m *Matcher) Classify(name string) Role {
	switch {
	case name == m.SchemaEntry:
		return RoleSchema
	case name == m.SettingsEntry:
		return RoleSettings
	case m.DevFidelityPattern != nil && m.DevFidelityPattern.MatchString(name):
		return RoleDevFidelity
	default:
		return RoleNone
	}
}

// Asset is a named archive entry.
type Asset struct {
	Name string
	Data []byte
}

// Artifacts holds everything extracted from one archive.
type Artifacts struct {
	// Source is the archive path or directory the artifacts came from.
	Source string
	// SchemaEntry is the archive name of the schema entry.
	SchemaEntry string
	// Schema is the schema source text.
	Schema string
	// Settings is the raw settings blob.
	Settings []byte
	// DevFidelityParams holds the dev fidelity parameter blobs in archive order.
	DevFidelityParams []Asset
	// Duplicates lists schema/settings entries that replaced an earlier one.
	Duplicates []string

	hasSchema   bool
	hasSettings bool
}

// SetSchema stores the schema source under its entry name.
func (a *Artifacts) SetSchema(entry, source string) {
	a.SchemaEntry = entry
	a.Schema = source
	a.hasSchema = true
}

// SetSettings stores the settings blob.
func (a *Artifacts) SetSettings(data []byte) {
	a.Settings = data
	a.hasSettings = true
}

// HasSchema reports whether a schema entry was found.
func (a *Artifacts) HasSchema() bool {
	return a.hasSchema
}

// HasSettings reports whether a settings entry was found.
func (a *Artifacts) HasSettings() bool {
	return a.hasSettings
}

// SchemaFileName is the logical name handed to the schema compiler: the base
// name of the schema entry.
func (a *Artifacts) SchemaFileName() string {
	if a.SchemaEntry == "" {
		return path.Base(DefaultSchemaEntry)
	}
	return path.Base(a.SchemaEntry)
}

// Require returns ErrMissingArtifact if the schema or settings is absent.
func (a *Artifacts) Require() error {
	var missing []string
	if !a.hasSchema {
		missing = append(missing, "schema")
	}
	if !a.hasSettings {
		missing = append(missing, "settings")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, strings.Join(missing, ", "))
	}
	return nil
}
