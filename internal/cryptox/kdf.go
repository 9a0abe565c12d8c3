// Package cryptox derives fixed-size keys from passphrases.
package cryptox

import (
	"golang.org/x/crypto/argon2"
)

// KeySize is the length of keys returned by DeriveKey.
const KeySize = 32

// DeriveKey stretches passphrase with Argon2id. The same passphrase and salt
// always give the same key, which keeps hash-masked audit values comparable
// between runs.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// Wipe zeroes b.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
