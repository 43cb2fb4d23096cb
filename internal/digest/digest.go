// Package digest provides tagged content checksums.
//
// A Checksum pairs a digest kind with its raw bytes. The byte length is
// fixed by the kind (MD5 = 16, SHA1 = 20) and is enforced on construction,
// so a Checksum obtained from New, FromHex, Parse or Sum is always valid.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
)

// Kind identifies a digest algorithm.
type Kind int

const (
	// MD5 is the 16-byte MD5 digest.
	MD5 Kind = iota + 1
	// SHA1 is the 20-byte SHA-1 digest.
	SHA1
)

// ErrInvalidChecksum is wrapped by every construction failure.
var ErrInvalidChecksum = errors.New("invalid checksum")

// Size returns the digest length in bytes, or 0 for an unknown kind.
func (k Kind) Size() int {
	switch k {
	case MD5:
		return md5.Size
	case SHA1:
		return sha1.Size
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case MD5:
		return "md5"
	case SHA1:
		return "sha1"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps "md5" / "sha1" (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "md5":
		return MD5, nil
	case "sha1":
		return SHA1, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidChecksum, s)
	}
}

func (k Kind) newHash() hash.Hash {
	if k == SHA1 {
		return sha1.New()
	}
	return md5.New()
}

// Checksum is a content fingerprint tagged with its algorithm.
type Checksum struct {
	Kind  Kind
	Bytes []byte
}

// New builds a checksum, copying b. Fails when len(b) does not match kind.
func New(kind Kind, b []byte) (*Checksum, error) {
	c := &Checksum{Kind: kind, Bytes: append([]byte(nil), b...)}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromHex decodes a hex digest of the given kind.
func FromHex(kind Kind, s string) (*Checksum, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s digest: %v", ErrInvalidChecksum, kind, err)
	}
	return New(kind, b)
}

// Parse reads the "$kind$hex" form produced by String.
func Parse(s string) (*Checksum, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 3 || parts[0] != "" {
		return nil, fmt.Errorf("%w: malformed %q", ErrInvalidChecksum, s)
	}
	kind, err := ParseKind(parts[1])
	if err != nil {
		return nil, err
	}
	return FromHex(kind, parts[2])
}

// Sum computes the digest of everything readable from r.
func Sum(kind Kind, r io.Reader) (*Checksum, error) {
	if kind.Size() == 0 {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidChecksum, int(kind))
	}
	h := kind.newHash()
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("digest %s: %w", kind, err)
	}
	return &Checksum{Kind: kind, Bytes: h.Sum(nil)}, nil
}

// Validate checks that the kind is known and the length matches it.
func (c *Checksum) Validate() error {
	size := c.Kind.Size()
	if size == 0 {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidChecksum, int(c.Kind))
	}
	if len(c.Bytes) != size {
		return fmt.Errorf("%w: %s digest must be %d bytes, got %d",
			ErrInvalidChecksum, c.Kind, size, len(c.Bytes))
	}
	return nil
}

// Hex returns the lowercase hex encoding of the digest bytes.
func (c *Checksum) Hex() string {
	return hex.EncodeToString(c.Bytes)
}

func (c *Checksum) String() string {
	return "$" + c.Kind.String() + "$" + c.Hex()
}

// Equal reports whether both checksums have the same kind and bytes.
func (c *Checksum) Equal(other *Checksum) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Kind == other.Kind && string(c.Bytes) == string(other.Bytes)
}

// Prefer picks the checksum to record when a caller supplies both an MD5
// and a SHA1 digest for the same content. SHA1 wins.
func Prefer(md5Sum, sha1Sum *Checksum) *Checksum {
	if sha1Sum != nil {
		return sha1Sum
	}
	return md5Sum
}
