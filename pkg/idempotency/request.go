// Package idempotency describes a client attempt to run a write at most
// once, identified by a caller supplied key.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const (
	MinKeyLength = 16
	MaxKeyLength = 128
	KeyPrefix    = "idempotency"
)

var (
	ErrKeyTooShort = errors.New("idempotency key must be at least 16 characters")
	ErrKeyTooLong  = errors.New("idempotency key must not exceed 128 characters")
	ErrKeyInvalid  = errors.New("idempotency key contains invalid characters")

	validKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

// Request binds a client key to the route it was sent to and a digest of
// the payload. Two requests with the same key and route are the same
// operation; a differing fingerprint means the key was reused.
type Request struct {
	Key         string
	Method      string
	Path        string
	Fingerprint string
}

func NewRequest(key, method, path string, body []byte) (Request, error) {
	if err := Validate(key); err != nil {
		return Request{}, err
	}

	return Request{
		Key:         key,
		Method:      method,
		Path:        path,
		Fingerprint: strconv.FormatUint(xxhash.Sum64(body), 16),
	}, nil
}

// Validate checks the length and alphabet of a client supplied key.
func Validate(key string) error {
	switch {
	case len(key) < MinKeyLength:
		return ErrKeyTooShort
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case !validKeyPattern.MatchString(key):
		return ErrKeyInvalid
	}

	return nil
}

// CacheKey is the storage key of the request. The client key is hashed so
// that arbitrary input never reaches the key space verbatim.
func (r Request) CacheKey() string {
	hash := sha256.Sum256([]byte(r.Method + ":" + r.Path + ":" + r.Key))

	return KeyPrefix + ":" + hex.EncodeToString(hash[:])
}

// IsReplayOf reports whether a stored fingerprint belongs to this payload.
// Records written without a fingerprint are accepted.
func (r Request) IsReplayOf(storedFingerprint string) bool {
	return storedFingerprint == "" || storedFingerprint == r.Fingerprint
}
