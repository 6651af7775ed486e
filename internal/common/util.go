package common

import (
	"crypto/rand"
	"math/big"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandSuffix returns n random lowercase-alphanumeric characters, suitable for
// disambiguating usernames and slugs. If the system entropy source fails the
// affected positions are padded with 'x'.
func RandSuffix(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			out[i] = 'x'
			continue
		}
		out[i] = suffixAlphabet[v.Int64()]
	}
	return string(out)
}

// WipeByteArray zeroes b in place. Used for passwords after they have been
// handed to the backend.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
