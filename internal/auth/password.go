package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Scheme names a stored password format.
type Scheme string

const (
	SchemeBcrypt Scheme = "bcrypt"
	SchemeSHA256 Scheme = "sha256"
	SchemePlain  Scheme = "plain"
)

const (
	bcryptPrefix = "$2"
	sha256Prefix = "{sha256}"
)

var ErrUnknownScheme = errors.New("unknown password scheme")

// DefaultSchemes leaves the plaintext fallback disabled.
var DefaultSchemes = []Scheme{SchemeBcrypt, SchemeSHA256}

func ParseScheme(s string) (Scheme, error) {
	switch sc := Scheme(strings.ToLower(strings.TrimSpace(s))); sc {
	case SchemeBcrypt, SchemeSHA256, SchemePlain:
		return sc, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// DetectScheme classifies a stored hash by its prefix. First match wins.
func DetectScheme(stored string) Scheme {
	s := strings.TrimSpace(stored)
	switch {
	case strings.HasPrefix(s, bcryptPrefix):
		return SchemeBcrypt
	case strings.HasPrefix(s, sha256Prefix):
		return SchemeSHA256
	default:
		return SchemePlain
	}
}

// Verifier checks candidate passwords against stored hashes for an
// allow-list of schemes. A stored value whose scheme is not enabled never
// matches.
type Verifier struct {
	enabled map[Scheme]bool
}

func NewVerifier(schemes ...Scheme) *Verifier {
	v := &Verifier{enabled: make(map[Scheme]bool, len(schemes))}
	for _, s := range schemes {
		v.enabled[s] = true
	}
	return v
}

func (v *Verifier) Enabled(s Scheme) bool { return v.enabled[s] }

// Verify reports whether provided matches stored. Malformed stored values
// are a mismatch, never an error.
func (v *Verifier) Verify(stored, provided string) bool {
	if !utf8.ValidString(stored) {
		return false
	}
	s := strings.TrimSpace(stored)
	if s == "" {
		return false
	}

	scheme := DetectScheme(s)
	if !v.enabled[scheme] {
		return false
	}

	switch scheme {
	case SchemeBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(s), []byte(provided)) == nil
	case SchemeSHA256:
		return verifySHA256(strings.TrimPrefix(s, sha256Prefix), provided)
	default:
		return subtle.ConstantTimeCompare([]byte(s), []byte(provided)) == 1
	}
}

func verifySHA256(hexDigest, provided string) bool {
	sum := sha256.Sum256([]byte(provided))
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(hexDigest)) == 1
}

// SHA256Hash renders provided in the legacy {sha256} format. It exists for
// fixtures and migrations only; new accounts are always bcrypt.
func SHA256Hash(provided string) string {
	sum := sha256.Sum256([]byte(provided))
	return sha256Prefix + hex.EncodeToString(sum[:])
}
