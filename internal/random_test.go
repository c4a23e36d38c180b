package internal

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestNewBackupCodesShape(t *testing.T) {
	codes, err := NewBackupCodes(10, 6)
	if err != nil {
		t.Fatalf("NewBackupCodes failed: %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("expected 10 codes, got %d", len(codes))
	}
	seen := map[string]bool{}
	for _, c := range codes {
		if len(c) != 6 {
			t.Fatalf("expected 6 chars, got %q", c)
		}
		for _, r := range c {
			if !strings.ContainsRune(backupCodeAlphabet, r) {
				t.Fatalf("unexpected rune %q in %q", r, c)
			}
		}
		if seen[c] {
			t.Fatalf("duplicate code %q", c)
		}
		seen[c] = true
	}
}

func TestNewBackupCodeRejectsBadLength(t *testing.T) {
	if _, err := NewBackupCode(2); err == nil {
		t.Fatal("expected error for short length")
	}
	if _, err := NewBackupCodes(0, 6); err == nil {
		t.Fatal("expected error for zero count")
	}
}

func TestHashBackupCodesNormalizesAndSalts(t *testing.T) {
	hash := func(c string) (string, error) {
		out, err := bcrypt.GenerateFromPassword([]byte(c), bcrypt.MinCost)
		return string(out), err
	}
	got, err := HashBackupCodes([]string{" abc123 ", "ABC123"}, hash)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 hashes, got %d", len(got))
	}
	if got[0] == got[1] {
		t.Fatal("expected salted hashes to differ for the same code")
	}
	for _, h := range got {
		if err := bcrypt.CompareHashAndPassword([]byte(h), []byte("ABC123")); err != nil {
			t.Fatalf("normalized code does not verify: %v", err)
		}
		if h == HashToken("ABC123") {
			t.Fatal("backup code stored as a plain digest")
		}
	}
}

func TestHashBackupCodesStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	_, err := HashBackupCodes([]string{"A", "B"}, func(string) (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected hash error, got %v", err)
	}
}

func TestHashTokenDistinguishesInputs(t *testing.T) {
	if len(HashToken("x")) != 64 {
		t.Fatal("expected hex sha256")
	}
	if HashToken("x") == HashToken("y") {
		t.Fatal("distinct inputs must hash differently")
	}
}
