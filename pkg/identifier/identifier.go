package identifier

import (
	"crypto/rand"
	"math/big"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// New generates a prefixed business code such as "REQ4K7TQ2" or "AST09XBM1".
// Codes are random, not sequential — uniqueness is enforced by the database
// unique index, and 36^6 keys make collisions on retry negligible.
func New(prefix string) string {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return prefix + string(buf)
}
