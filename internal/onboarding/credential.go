package onboarding

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	DefaultCredentialLength = 12
	MinCredentialLength     = 4
)

const (
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()-_=+"
	allChars    = upperChars + lowerChars + digitChars + symbolChars
)

// GenerateCredential returns a random temporary password of the given length
// holding at least one uppercase letter, lowercase letter, digit and symbol.
// Lengths below MinCredentialLength are raised to it.
func GenerateCredential(length int) (string, error) {
	if length < MinCredentialLength {
		length = MinCredentialLength
	}

	buf := make([]byte, 0, length)
	for _, set := range []string{upperChars, lowerChars, digitChars, symbolChars} {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := randomChar(allChars)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates, so the guaranteed classes do not sit at fixed positions.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

func randomChar(set string) (byte, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("generate credential: %w", err)
	}
	return int(v.Int64()), nil
}
