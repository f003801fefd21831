// Package idgen generates document identifiers.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the 62-symbol alphabet used for short identifiers.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// DefaultSize is the length of identifiers produced by NanoID.
const DefaultSize = 8

// Generator kinds accepted by New.
const (
	KindNanoID = "nanoid"
	KindUUID   = "uuid"
)

// Generator returns a fresh identifier.
type Generator func() (string, error)

// NanoID returns a generator of DefaultSize-character identifiers over Alphabet.
// At eight characters collisions become likely after tens of millions of
// documents; use UUID for larger collections.
func NanoID() Generator {
	return NanoIDSize(DefaultSize)
}

// NanoIDSize returns a generator of size-character identifiers over Alphabet.
func NanoIDSize(size int) Generator {
	return func() (string, error) {
		id, err := gonanoid.Generate(Alphabet, size)
		if err != nil {
			return "", fmt.Errorf("generate nanoid: %w", err)
		}
		return id, nil
	}
}

// UUID returns a generator of random (version 4) UUIDs.
func UUID() Generator {
	return func() (string, error) {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("generate uuid: %w", err)
		}
		return id.String(), nil
	}
}

// New returns the generator for kind. An empty kind selects NanoID.
func New(kind string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindNanoID:
		return NanoID(), nil
	case KindUUID:
		return UUID(), nil
	default:
		return nil, fmt.Errorf("unknown id generator: %q", kind)
	}
}
