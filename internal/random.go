package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const backupCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewBackupCode returns an uppercase base36 code of the given length.
func NewBackupCode(length int) (string, error) {
	if length < 4 || length > 32 {
		return "", errors.New("invalid backup code length")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NewBackupCodes returns count distinct backup codes.
func NewBackupCodes(count, length int) ([]string, error) {
	if count <= 0 {
		return nil, errors.New("invalid backup code count")
	}
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		code, err := NewBackupCode(length)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
