package avatar

import (
	"crypto/rand"
	"math/big"
)

// Options are the avatars a parent can pick for a child
var Options = []string{"👦", "👧", "🧒", "👶", "🧒🏽", "👦🏻", "👧🏾", "🧒🏼"}

// Default is used when no avatar was picked
func Default() string {
	return Options[0]
}

// Random picks an avatar for a child
func Random() (string, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(Options))))
	if err != nil {
		return "", err
	}
	return Options[num.Int64()], nil
}

// Valid reports whether a is one of the offered avatars
func Valid(a string) bool {
	for _, o := range Options {
		if o == a {
			return true
		}
	}
	return false
}

// OrDefault returns a when it is a known avatar, otherwise the default
func OrDefault(a string) string {
	if Valid(a) {
		return a
	}
	return Default()
}
