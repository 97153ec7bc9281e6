package onboarding

import (
	"strings"
	"testing"
)

func TestGenerateCredential_Strength(t *testing.T) {
	for _, length := range []int{4, 8, 12, 32} {
		for i := 0; i < 200; i++ {
			cred, err := GenerateCredential(length)
			if err != nil {
				t.Fatalf("GenerateCredential(%d) failed: %v", length, err)
			}
			if len(cred) != length {
				t.Fatalf("len = %d, want %d", len(cred), length)
			}
			for _, set := range []string{upperChars, lowerChars, digitChars, symbolChars} {
				if !strings.ContainsAny(cred, set) {
					t.Fatalf("credential %q has no character from %q", cred, set)
				}
			}
			for _, c := range cred {
				if !strings.ContainsRune(allChars, c) {
					t.Fatalf("credential %q contains %q outside the pool", cred, c)
				}
			}
		}
	}
}

func TestGenerateCredential_MinimumLength(t *testing.T) {
	for _, length := range []int{-1, 0, 3} {
		cred, err := GenerateCredential(length)
		if err != nil {
			t.Fatalf("GenerateCredential(%d) failed: %v", length, err)
		}
		if len(cred) != MinCredentialLength {
			t.Errorf("GenerateCredential(%d) len = %d, want %d", length, len(cred), MinCredentialLength)
		}
	}
}

func TestGenerateCredential_NoFixedPositions(t *testing.T) {
	// The first character must not always be uppercase.
	const attempts = 200
	upperFirst := 0
	for i := 0; i < attempts; i++ {
		cred, err := GenerateCredential(DefaultCredentialLength)
		if err != nil {
			t.Fatalf("GenerateCredential failed: %v", err)
		}
		if strings.ContainsRune(upperChars, rune(cred[0])) {
			upperFirst++
		}
	}
	if upperFirst == attempts {
		t.Errorf("first character was uppercase in all %d credentials", attempts)
	}
}
