package config

import (
	"fmt"
	"strings"
)

// ParseError reports malformed configuration syntax or an unrecognized key.
// It carries enough location context to point at the offending declaration.
type ParseError struct {
	Package string
	File    string
	Key     string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("invalid build configuration")
	if e.Package != "" {
		fmt.Fprintf(&b, " for package %q", e.Package)
	}
	if e.File != "" {
		fmt.Fprintf(&b, " (%s)", e.File)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " at key %q", e.Key)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DuplicateKeyError reports two builder or target declarations normalizing to
// the same key. Packages lists both declaring locations.
type DuplicateKeyError struct {
	Key      string
	Packages []string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q declared by %s", e.Key, strings.Join(e.Packages, " and "))
}

// UnknownAutoApplyError reports an unrecognized auto_apply policy value. The
// value is never silently defaulted.
type UnknownAutoApplyError struct {
	Key   string
	Value string
}

func (e *UnknownAutoApplyError) Error() string {
	return fmt.Sprintf("builder %q declares unknown auto_apply value %q", e.Key, e.Value)
}
