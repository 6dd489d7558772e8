package types

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"regexp"
	"strings"
)

const maxEmailChars = 100

// Conservative RFC-style grammar: a word-character local part allowing
// the common specials, and dotted domain labels ending in a 2-24 char TLD.
var emailPattern = regexp.MustCompile(`^[0-9A-Za-z][-+.!#$%&'*/=?^{}|~\w]*@(?:[0-9A-Za-z][-\w]*\.)+[A-Za-z0-9]{2,24}$`)

// Email is a case-preserved, case-insensitive user identity. Comparison,
// hashing and partition placement all use the lower-cased form.
type Email struct {
	addr string
}

// InvalidEmailError reports an input rejected by ParseEmail.
type InvalidEmailError struct {
	Attempted string
}

func (e *InvalidEmailError) Error() string {
	return fmt.Sprintf("invalid email address: %q", e.Attempted)
}

// ParseEmail validates and normalizes (trims) an email address. The
// original casing is preserved.
func ParseEmail(s string) (Email, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxEmailChars || !emailPattern.MatchString(s) {
		return Email{}, &InvalidEmailError{Attempted: s}
	}
	return Email{addr: s}, nil
}

func (e Email) IsEmpty() bool  { return e.addr == "" }
func (e Email) String() string { return e.addr }

// Key is the canonical comparison and storage key.
func (e Email) Key() string { return strings.ToLower(e.addr) }

// Equal compares case-insensitively.
func (e Email) Equal(other Email) bool { return e.Key() == other.Key() }

// Compare orders emails case-insensitively.
func (e Email) Compare(other Email) int { return strings.Compare(e.Key(), other.Key()) }

// PartitionKey derives the deterministic numeric partition key: a CRC32
// (IEEE) of the UTF-8 bytes of the canonical key, carried as a signed
// 32-bit value widened to int64 so it matches the discovery service's
// Int64 partition key space.
func (e Email) PartitionKey() int64 {
	return int64(int32(crc32.ChecksumIEEE([]byte(e.Key()))))
}

// MarshalJSON encodes the email as its preserved-case string.
func (e Email) MarshalJSON() ([]byte, error) { return json.Marshal(e.addr) }

// UnmarshalJSON accepts any string; wire peers are trusted to have
// validated at the edge, matching the trusted-input parse path.
func (e *Email) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	e.addr = s
	return nil
}
