// Package platform provides OS detection utilities and a gate that
// restricts actions to a set of operating systems.
package platform

import (
	"runtime"
	"slices"
	"strings"
)

// Type represents the detected platform.
type Type string

const (
	Windows Type = "windows"
	MacOS   Type = "macos"
	Linux   Type = "linux"
	Android Type = "android"
	Apple   Type = "apple"
	Unknown Type = "unknown"

	// All is a wildcard token accepted by Run, Do and Permits. It never
	// names a detected platform.
	All Type = "all"
)

var known = []Type{Windows, MacOS, Linux, Android, Apple, Unknown, All}

// Normalize returns s in canonical form: trimmed and lower case.
func Normalize(s string) Type {
	return Type(strings.ToLower(strings.TrimSpace(s)))
}

// String implements fmt.Stringer.
func (t Type) String() string { return string(t) }

// Valid reports whether t is one of the known platform labels.
func (t Type) Valid() bool {
	return slices.Contains(known, Normalize(string(t)))
}

// Detect returns the current platform type from the runtime's platform
// identifier.
func Detect() Type {
	return DetectFrom(NewProcessProbe())
}

// GOOS returns the raw runtime platform identifier.
func GOOS() string { return runtime.GOOS }

// AllowList is the set of platforms an action is permitted on.
type AllowList []Type

// Allow builds an AllowList from one or more labels. Each label is
// normalized; empty labels are dropped.
func Allow(labels ...string) AllowList {
	list := make(AllowList, 0, len(labels))
	for _, l := range labels {
		if t := Normalize(l); t != "" {
			list = append(list, t)
		}
	}
	return list
}

// ParseAllowList splits a comma or whitespace separated list of labels.
func ParseAllowList(s string) AllowList {
	return Allow(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})...)
}

// Normalized returns a copy of l with every label in canonical form.
func (l AllowList) Normalized() AllowList {
	out := make(AllowList, 0, len(l))
	for _, t := range l {
		if n := Normalize(string(t)); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Contains reports whether t appears in l, ignoring case.
func (l AllowList) Contains(t Type) bool {
	return slices.Contains(l.Normalized(), Normalize(string(t)))
}

// Invalid returns the labels in l that are not known platform labels.
func (l AllowList) Invalid() []string {
	var bad []string
	for _, t := range l {
		if !t.Valid() {
			bad = append(bad, string(t))
		}
	}
	return bad
}

func (l AllowList) String() string {
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
