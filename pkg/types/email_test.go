package types

import (
	"encoding/json"
	"errors"
	"hash/crc32"
	"strings"
	"testing"
)

func TestParseEmailValid(t *testing.T) {
	valid := []string{
		"user@example.com",
		"User.Name+tag@sub.example.org",
		"a@b.co",
		"  padded@example.com  ",
	}
	for _, in := range valid {
		e, err := ParseEmail(in)
		if err != nil {
			t.Fatalf("ParseEmail(%q): %v", in, err)
		}
		if e.String() != strings.TrimSpace(in) {
			t.Fatalf("ParseEmail(%q) preserved %q", in, e.String())
		}
	}
}

func TestParseEmailInvalid(t *testing.T) {
	invalid := []string{
		"",
		"no-at-sign",
		"@example.com",
		"user@",
		"user@nodot",
		strings.Repeat("a", 95) + "@example.com", // over the length cap
	}
	for _, in := range invalid {
		_, err := ParseEmail(in)
		if err == nil {
			t.Fatalf("ParseEmail(%q) accepted", in)
		}
		var invalidErr *InvalidEmailError
		if !errors.As(err, &invalidErr) {
			t.Fatalf("ParseEmail(%q) error type %T", in, err)
		}
	}
}

func TestEmailCaseInsensitive(t *testing.T) {
	a, err := ParseEmail("Alice@Example.COM")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseEmail("alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatal("differently-cased spellings must compare equal")
	}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %q vs %q", a.Key(), b.Key())
	}
	if a.String() != "Alice@Example.COM" {
		t.Fatalf("original casing lost: %q", a.String())
	}
	if a.PartitionKey() != b.PartitionKey() {
		t.Fatal("partition keys differ for equal identities")
	}
}

func TestEmailPartitionKey(t *testing.T) {
	e, err := ParseEmail("Seller@Example.com")
	if err != nil {
		t.Fatal(err)
	}
	// signed 32-bit checksum of the canonical key, widened to int64
	want := int64(int32(crc32.ChecksumIEEE([]byte("seller@example.com"))))
	if got := e.PartitionKey(); got != want {
		t.Fatalf("PartitionKey = %d, want %d", got, want)
	}
}

func TestEmailJSONRoundTrip(t *testing.T) {
	e, err := ParseEmail("Bob@example.com")
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"Bob@example.com"` {
		t.Fatalf("marshaled %s", b)
	}
	var back Email
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(e) || back.String() != e.String() {
		t.Fatalf("round trip changed the value: %q", back.String())
	}
}
