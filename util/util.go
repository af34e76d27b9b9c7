package util

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// UUID returns a random UUID string without dashes removed.
func UUID() string { return uuid.NewString() }

// ValueOf returns a pointer to v.
func ValueOf[T any](v T) *T { return &v }

// Deref returns the value p points to, or the zero value when p is nil.
func Deref[T any](p *T) (t T) {
	if p != nil {
		return *p
	}
	return
}

const autoIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// AutoID returns a 20 character alphanumeric identity in the format
// document services generate natively.
func AutoID() string {
	b := make([]byte, 20)
	size := big.NewInt(int64(len(autoIDAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			panic(err)
		}
		b[i] = autoIDAlphabet[n.Int64()]
	}
	return string(b)
}

// Contains reports whether s contains v.
func Contains[T comparable](s []T, v T) bool {
	for i := range s {
		if s[i] == v {
			return true
		}
	}
	return false
}
