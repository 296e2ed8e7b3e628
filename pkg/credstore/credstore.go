// Package credstore persists (username, secret) pairs and validates them
// during authentication. Implementations include the default SQLite store
// and an in-memory store for tests.
package credstore

import (
	"context"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/crypto"
)

// Store is the credential contract the authentication state machine
// depends on. Both methods are safe for concurrent use; implementations
// must not allow two simultaneous Creates to register the same username.
type Store interface {
	// Verify reports whether the secret matches the stored secret for
	// username. Unknown usernames verify false without error.
	Verify(ctx context.Context, username, secret string) (bool, error)

	// Create stores a new credential pair. It returns false if the
	// username already exists.
	Create(ctx context.Context, username, secret string) (bool, error)

	Close() error
}

// Hasher transforms secrets before storage. Hashing is pluggable at the
// store boundary; the wire protocol never sees hashed values.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(secret, stored string) (bool, error)
}

// Argon2Hasher stores Argon2id digests with per-secret salts.
type Argon2Hasher struct{}

func (Argon2Hasher) Hash(secret string) (string, error) {
	return crypto.HashSecret(secret)
}

func (Argon2Hasher) Compare(secret, stored string) (bool, error) {
	return crypto.VerifySecret(secret, stored)
}

// PlainHasher stores secrets verbatim and compares byte-for-byte,
// matching credential files written by earlier releases.
type PlainHasher struct{}

func (PlainHasher) Hash(secret string) (string, error) { return secret, nil }

func (PlainHasher) Compare(secret, stored string) (bool, error) {
	return secret == stored, nil
}
