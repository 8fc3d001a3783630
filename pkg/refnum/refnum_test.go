package refnum

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestDaily(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	got := Daily("VIS", at)
	if !regexp.MustCompile(`^VIS-20260309-[A-Z2-9]{6}$`).MatchString(got) {
		t.Errorf("Daily() = %q", got)
	}
}

func TestStamped(t *testing.T) {
	at := time.UnixMilli(1767225600000)
	got := Stamped("INV", at)
	if !strings.HasPrefix(got, "INV-1767225600000-") || len(got) != len("INV-1767225600000-")+4 {
		t.Errorf("Stamped() = %q", got)
	}
}

func TestSuffix_Alphabet(t *testing.T) {
	s := Suffix(200)
	if len(s) != 200 {
		t.Fatalf("len = %d", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			t.Fatalf("unexpected rune %q", r)
		}
	}
}

func TestSuffix_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := Suffix(8)
		if seen[s] {
			t.Fatalf("duplicate suffix %q", s)
		}
		seen[s] = true
	}
}
