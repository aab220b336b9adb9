// Package password hashes and verifies stored user credentials.
// Two algorithms are supported: bcrypt (the default) and argon2id.
package password

import (
	"fmt"
	"strings"
)

// Hasher hashes passwords and checks them against stored hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
	NeedsRehash(hash string) bool
}

const (
	KindBcrypt   = "bcrypt"
	KindArgon2id = "argon2id"
)

// New returns the hasher registered under kind with its default parameters.
func New(kind string) (Hasher, error) {
	switch kind {
	case "", KindBcrypt:
		return NewBcryptHasher(nil), nil
	case KindArgon2id:
		return NewArgon2Hasher(nil), nil
	}

	return nil, fmt.Errorf("unknown password hasher %q", kind)
}

// IsKnownKind reports whether kind names a supported algorithm.
func IsKnownKind(kind string) bool {
	return kind == KindBcrypt || kind == KindArgon2id
}

// VerifyAny checks password against a hash produced by any supported algorithm,
// so switching the configured hasher does not lock existing users out.
func VerifyAny(password, hash string) (bool, error) {
	if strings.HasPrefix(hash, "$argon2id$") {
		return NewArgon2Hasher(nil).Verify(password, hash)
	}

	return NewBcryptHasher(nil).Verify(password, hash)
}
