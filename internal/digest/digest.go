package digest

import (
	"crypto/sha1" //nolint:gosec // SHA-1 identifies known images, it is not used for security
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/nao1215/dnsblcheck/internal/model"
)

// Size is the length of a digest in bytes (160 bits).
const Size = sha1.Size

// Reference digests of the dnsbl.info status images.
const (
	// DefaultCleanHex is the digest of the "not listed" image.
	DefaultCleanHex = "11f40b11c891c53b6f97945ed71e771d0caa2503"

	// DefaultListedHex is the digest of the "listed" image.
	DefaultListedHex = "2ab93125fbe266b3bb4fd3704e5b1523d895dda3"
)

// ErrInvalidDigest is returned when a digest string cannot be parsed.
var ErrInvalidDigest = errors.New("invalid digest: expected 40 hex characters")

// Sum is a SHA-1 content digest.
type Sum [Size]byte

// String returns the lower-case hex form of the digest.
func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// IsZero reports whether s is the zero digest.
func (s Sum) IsZero() bool {
	return s == Sum{}
}

// MarshalText implements encoding.TextMarshaler.
func (s Sum) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Sum) UnmarshalText(text []byte) error {
	parsed, err := ParseSum(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSum parses a hex encoded digest. Surrounding whitespace is ignored
// and upper-case hex is accepted.
func ParseSum(s string) (Sum, error) {
	var sum Sum
	s = strings.TrimSpace(s)
	if len(s) != hex.EncodedLen(Size) {
		return sum, fmt.Errorf("%w: %q", ErrInvalidDigest, s)
	}
	if _, err := hex.Decode(sum[:], []byte(strings.ToLower(s))); err != nil {
		return sum, fmt.Errorf("%w: %q", ErrInvalidDigest, s)
	}
	return sum, nil
}

// MustParseSum is like ParseSum but panics on error.
// It is intended for package-level reference digests.
func MustParseSum(s string) Sum {
	sum, err := ParseSum(s)
	if err != nil {
		panic(err)
	}
	return sum
}

// SumBytes computes the digest of data.
func SumBytes(data []byte) Sum {
	return Sum(sha1.Sum(data)) //nolint:gosec // see package import
}

// SumReader computes the digest of everything read from r.
// It returns the number of bytes read.
func SumReader(r io.Reader) (Sum, int64, error) {
	var sum Sum
	h := newHash()
	n, err := io.Copy(h, r)
	if err != nil {
		return sum, n, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, n, nil
}

func newHash() hash.Hash {
	return sha1.New() //nolint:gosec // see package import
}

// Classifier maps content digests to provider statuses.
// The reference digests are passed in explicitly so tests and
// configuration files can substitute alternate reference sets.
type Classifier struct {
	clean  Sum
	listed Sum
}

// NewClassifier creates a Classifier with the given reference digests.
func NewClassifier(clean, listed Sum) *Classifier {
	return &Classifier{clean: clean, listed: listed}
}

// DefaultClassifier returns a Classifier for the dnsbl.info status images.
func DefaultClassifier() *Classifier {
	return NewClassifier(MustParseSum(DefaultCleanHex), MustParseSum(DefaultListedHex))
}

// Clean returns the clean reference digest.
func (c *Classifier) Clean() Sum {
	return c.clean
}

// Listed returns the listed reference digest.
func (c *Classifier) Listed() Sum {
	return c.listed
}

// Classify hashes data and classifies the digest.
func (c *Classifier) Classify(data []byte) model.Status {
	return c.ClassifySum(SumBytes(data))
}

// ClassifySum classifies an already computed digest.
// When both references are equal, clean wins.
func (c *Classifier) ClassifySum(sum Sum) model.Status {
	switch sum {
	case c.clean:
		return model.StatusClean
	case c.listed:
		return model.StatusListed
	default:
		return model.StatusUnknown
	}
}
