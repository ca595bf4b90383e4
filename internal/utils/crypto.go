// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	alphanumericCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// UpperAlphanumericCharset is the alphabet of transaction codes.
	UpperAlphanumericCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func GenerateRandomString(length int) (string, error) {
	return GenerateRandomStringFrom(alphanumericCharset, length)
}

// GenerateRandomStringFrom draws length characters uniformly from charset
// using crypto/rand.
func GenerateRandomStringFrom(charset string, length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(charset)))

	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}
