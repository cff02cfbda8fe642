// Package util provides small cross-cutting helpers shared by the storage
// and handler layers: paste/folder id generation.
package util

import (
	"github.com/google/uuid"
)

// GenerateID creates a new opaque paste or folder identifier. LocalPaste's
// ids carry no structure callers may rely on; a random UUIDv4 gives collision odds low enough that callers
// only need to re-roll on an (astronomically unlikely) existing-id hit.
func GenerateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustGenerateID generates an id or panics if the system's CSPRNG failed.
// Safe for production use: uuid.NewRandom only errors if crypto/rand itself
// cannot be read, which a running process cannot meaningfully recover from.
func MustGenerateID() string {
	id, err := GenerateID()
	if err != nil {
		panic("util: failed to generate id: " + err.Error())
	}
	return id
}
