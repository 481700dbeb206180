// Package idgen generates short, URL-safe unique ids. Stream sessions
// are tagged with these ids in logs and in the session roster.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Ids are ten random characters from an alphanumeric alphabet, which
// keeps them log-friendly and safe in URLs without escaping.
const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 10
)

// RandomLength is the number of random characters appended after the
// caller's prefix.
const RandomLength = length

// New returns a fresh id built from the caller's prefix and a random
// suffix, e.g. New("sess-") -> "sess-x3Fq9TbkLm".
func New(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
