// Package identity derives stable identity keys and content hashes for
// metadata documents.
package identity

import (
	"crypto/md5"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/document"
)

// Key is a derived document identity: the joined identifying field values and
// their SHA-512 digest. Hash is the lookup key for dedup and supersede.
type Key struct {
	Value string
	Hash  string
}

// MissingIdentityFieldError reports an identifying field that is absent or
// empty, which makes key derivation impossible for the document.
type MissingIdentityFieldError struct {
	Field string
}

func (e *MissingIdentityFieldError) Error() string {
	return fmt.Sprintf("identity: identifying field %q is missing or empty", e.Field)
}

// DeriveKey builds the identity key for doc from the ordered identifying
// field paths. Field order is fixed by the caller, not by document order, so
// two documents differing only in field order derive the same key. A missing
// or empty field returns a *MissingIdentityFieldError and no key; the caller
// must skip the ledger write for that document.
func DeriveKey(doc map[string]any, fields []string) (Key, error) {
	flat := document.Flatten(doc)
	values := make([]string, 0, len(fields))
	for _, field := range fields {
		val, found := flat[field]
		if !found || val == "" {
			return Key{}, &MissingIdentityFieldError{Field: field}
		}
		values = append(values, val)
	}
	value := strings.Join(values, "_")
	return Key{Value: value, Hash: LongHash(value)}, nil
}

// LongHash returns the SHA-512 hex digest of s. Used for externally visible
// key hashes and content hashes.
func LongHash(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the MD5 hex digest of s. Used only for short internal
// keys such as audit-log correlation ids.
func ShortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ContentHash canonicalizes doc (epoch dates to timestamps, HTML to text)
// and digests its canonical JSON serialization. Two calls over the same
// document always agree, and re-ingesting identical content hashes the same.
func ContentHash(doc map[string]any) (string, error) {
	canonical, err := document.CanonicalJSON(document.Canonicalize(doc))
	if err != nil {
		return "", err
	}
	return LongHash(string(canonical)), nil
}
