// Package manifest loads commit manifests written in CUE.
//
// A manifest is what a commit driver hands to "wcq finalize": the commit the
// server acknowledged and one entry per committed path.
//
//	revision: 42
//	author:   "harry"
//	date:     "2024-05-01T10:00:00Z"
//	records: [
//		{path: "a/b.txt", sha1: "aaaa..."},
//		{path: "c", recursive: true, remove_changelist: true},
//		{path: "d", props: {"svn:wc:ra_dav:version-url": "/!svn/ver/42/d", stale: null}},
//	]
//
// A null property value deletes the property. When both md5 and sha1 are
// given the sha1 digest is kept.
package manifest

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/queue"
)

// Error code constants.
const (
	ErrCodeRead         = "M001" // Manifest file could not be read
	ErrCodeBuild        = "M002" // CUE compile/evaluation failed
	ErrCodeNoRecords    = "M003" // records list missing
	ErrCodeInvalidField = "M004" // Field has the wrong type or value
	ErrCodeChecksum     = "M005" // Digest does not decode or has the wrong size
	ErrCodeLoad         = "M006" // CUE package load failed
)

// Error is a manifest loading error with its CUE position when known.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Manifest is a decoded commit manifest.
type Manifest struct {
	Commit  queue.CommitInfo
	Records []queue.Record
}

// Load decodes the manifest at path. A directory is loaded as a CUE package,
// so a manifest may be split across files.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeRead, Message: fmt.Sprintf("reading manifest: %v", err)}
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeRead, Message: fmt.Sprintf("reading manifest: %v", err)}
	}
	return Parse(data, path)
}

// LoadDir builds the CUE package in dir and decodes it.
func LoadDir(dir string) (*Manifest, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &Error{Code: ErrCodeLoad, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &Error{Code: ErrCodeLoad, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, &Error{Code: ErrCodeBuild, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return decode(v)
}

// Parse decodes a manifest from CUE source. filename is used in positions.
func Parse(data []byte, filename string) (*Manifest, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, &Error{Code: ErrCodeBuild, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return decode(v)
}

func decode(v cue.Value) (*Manifest, error) {
	m := &Manifest{}

	rev, ok, err := optInt(v, "revision")
	if err != nil {
		return nil, err
	}
	if ok {
		if rev < 0 {
			return nil, fieldError(v.LookupPath(cue.ParsePath("revision")), "revision must not be negative")
		}
		m.Commit.Revision = rev
	}

	if m.Commit.Author, _, err = optString(v, "author"); err != nil {
		return nil, err
	}

	date, ok, err := optString(v, "date")
	if err != nil {
		return nil, err
	}
	if ok {
		t, perr := time.Parse(time.RFC3339, date)
		if perr != nil {
			return nil, fieldError(v.LookupPath(cue.ParsePath("date")), fmt.Sprintf("date: %v", perr))
		}
		m.Commit.Date = t
	}

	recordsVal := v.LookupPath(cue.ParsePath("records"))
	if !recordsVal.Exists() {
		return nil, &Error{Code: ErrCodeNoRecords, Message: "records list is required", Pos: v.Pos()}
	}
	iter, err := recordsVal.List()
	if err != nil {
		return nil, fieldError(recordsVal, fmt.Sprintf("records must be a list: %v", err))
	}

	for iter.Next() {
		rec, err := parseRecord(iter.Value())
		if err != nil {
			return nil, err
		}
		m.Records = append(m.Records, rec)
	}

	return m, nil
}

func parseRecord(v cue.Value) (queue.Record, error) {
	var rec queue.Record

	path, ok, err := optString(v, "path")
	if err != nil {
		return rec, err
	}
	if !ok {
		return rec, &Error{Code: ErrCodeInvalidField, Message: "record path is required", Pos: v.Pos()}
	}
	rec.Path = path

	if rec.Recursive, _, err = optBool(v, "recursive"); err != nil {
		return rec, err
	}
	if rec.RemoveLock, _, err = optBool(v, "remove_lock"); err != nil {
		return rec, err
	}
	if rec.RemoveChangelist, _, err = optBool(v, "remove_changelist"); err != nil {
		return rec, err
	}

	md5Sum, err := optChecksum(v, "md5", digest.MD5)
	if err != nil {
		return rec, err
	}
	sha1Sum, err := optChecksum(v, "sha1", digest.SHA1)
	if err != nil {
		return rec, err
	}
	rec.Checksum = digest.Prefer(md5Sum, sha1Sum)

	propsVal := v.LookupPath(cue.ParsePath("props"))
	if propsVal.Exists() {
		fields, err := propsVal.Fields()
		if err != nil {
			return rec, fieldError(propsVal, fmt.Sprintf("props must be a struct: %v", err))
		}
		for fields.Next() {
			name, val := fields.Label(), fields.Value()
			if val.IsNull() {
				rec.PropChanges = append(rec.PropChanges, queue.DeleteProp(name))
				continue
			}
			s, err := val.String()
			if err != nil {
				return rec, fieldError(val, fmt.Sprintf("property %q must be a string or null", name))
			}
			rec.PropChanges = append(rec.PropChanges, queue.SetProp(name, s))
		}
	}

	return rec, nil
}

func optString(v cue.Value, field string) (string, bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, fieldError(f, fmt.Sprintf("%s must be a string", field))
	}
	return s, true, nil
}

func optBool(v cue.Value, field string) (bool, bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return false, false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, false, fieldError(f, fmt.Sprintf("%s must be a bool", field))
	}
	return b, true, nil
}

func optInt(v cue.Value, field string) (int64, bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return 0, false, nil
	}
	n, err := f.Int64()
	if err != nil {
		return 0, false, fieldError(f, fmt.Sprintf("%s must be an integer", field))
	}
	return n, true, nil
}

func optChecksum(v cue.Value, field string, kind digest.Kind) (*digest.Checksum, error) {
	s, ok, err := optString(v, field)
	if err != nil || !ok {
		return nil, err
	}
	sum, err := digest.FromHex(kind, s)
	if err != nil {
		return nil, &Error{Code: ErrCodeChecksum, Message: err.Error(), Pos: v.LookupPath(cue.ParsePath(field)).Pos()}
	}
	return sum, nil
}

func fieldError(v cue.Value, msg string) *Error {
	return &Error{Code: ErrCodeInvalidField, Message: msg, Pos: v.Pos()}
}
