// Package props classifies versioned property names.
//
// Property names fall into three families: working-copy cache properties
// ("svn:wc:" prefix) that never travel to the server, entry properties
// ("svn:entry:" prefix) synthesised from entry metadata, and regular
// properties, which are everything else.
package props

import "strings"

const (
	// WCPrefix marks working-copy cache properties.
	WCPrefix = "svn:wc:"
	// EntryPrefix marks entry properties.
	EntryPrefix = "svn:entry:"
)

// Kind is the family a property name belongs to.
type Kind string

const (
	KindRegular Kind = "regular"
	KindEntry   Kind = "entry"
	KindWC      Kind = "wc"
)

// KindOf returns the family of name.
func KindOf(name string) Kind {
	switch {
	case strings.HasPrefix(name, WCPrefix):
		return KindWC
	case strings.HasPrefix(name, EntryPrefix):
		return KindEntry
	default:
		return KindRegular
	}
}

// IsWCProp reports whether name is a working-copy cache property.
func IsWCProp(name string) bool { return KindOf(name) == KindWC }

// IsEntryProp reports whether name is an entry property.
func IsEntryProp(name string) bool { return KindOf(name) == KindEntry }

// IsNormalProp reports whether name is a regular versioned property.
func IsNormalProp(name string) bool { return KindOf(name) == KindRegular }
