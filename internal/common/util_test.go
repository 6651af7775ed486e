package common

import (
	"strings"
	"testing"
)

func TestRandSuffix_LengthAndAlphabet(t *testing.T) {
	for _, n := range []int{0, 1, 4, 24} {
		s := RandSuffix(n)
		if len(s) != n {
			t.Fatalf("expected length %d, got %d", n, len(s))
		}
		for _, r := range s {
			if !strings.ContainsRune(suffixAlphabet, r) {
				t.Fatalf("unexpected character %q in suffix %q", r, s)
			}
		}
	}
}

func TestRandSuffix_EntropyHint(t *testing.T) {
	a := RandSuffix(16)
	b := RandSuffix(16)
	if a == b {
		t.Logf("warning: two RandSuffix(16) results are identical; extremely unlikely")
	}
}
