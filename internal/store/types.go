package store

import (
	"time"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/props"
)

// NodeKind is the kind of a versioned node.
type NodeKind string

const (
	KindFile NodeKind = "file"
	KindDir  NodeKind = "dir"
)

// Adm describes the administrative area of a working-copy root.
type Adm struct {
	Path      string
	UUID      string
	URL       string
	ReposRoot string
	Revision  int64
}

// Node is the stored state of one versioned path.
type Node struct {
	Path          string           `yaml:"path"`
	Kind          NodeKind         `yaml:"kind,omitempty"`
	Revision      int64            `yaml:"revision,omitempty"`
	ChangedRev    int64            `yaml:"changed_rev,omitempty"`
	ChangedAuthor string           `yaml:"changed_author,omitempty"`
	ChangedDate   time.Time        `yaml:"changed_date,omitempty"`
	URL           string           `yaml:"url,omitempty"`
	Checksum      *digest.Checksum `yaml:"-"`
	LockToken     string           `yaml:"lock_token,omitempty"`
	Changelist    string           `yaml:"changelist,omitempty"`
	Depth         string           `yaml:"depth,omitempty"`
	Missing       bool             `yaml:"missing,omitempty"`
	Modified      bool             `yaml:"modified,omitempty"`
}

// Prop is one stored property.
type Prop struct {
	Name  string
	Value string
	Kind  props.Kind
}

// Run is the audit record of one finalization pass.
type Run struct {
	ID         string
	Seq        int64
	Revision   int64
	Applied    int
	Failed     int
	NotApplied int
	Cancelled  bool
	Error      string
}

// RevisionStatus summarizes the revisions present under a root.
type RevisionStatus struct {
	MinRev   int64
	MaxRev   int64
	Switched bool
	Modified bool
}
