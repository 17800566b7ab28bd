// Package randname provides random identifier suffixes used for temp
// directories and Dockerfile cache build contexts.
package randname

import (
	"math/rand"
	"time"
)

const letterDigitBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func init() {
	rand.Seed(time.Now().UTC().UnixNano())
}

// String returns a random alphanumeric string of length n.
func String(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterDigitBytes[rand.Intn(len(letterDigitBytes))]
	}
	return string(b)
}
