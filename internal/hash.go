package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashToken returns the hex SHA-256 digest stored in place of a bearer value.
// Only for high-entropy values; short codes go through HashBackupCodes.
func HashToken(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// NormalizeBackupCode folds a backup code to the form it is hashed in.
func NormalizeBackupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HashBackupCodes normalizes each code and hashes it with hash, which must
// be a salted slow hash such as bcrypt.
func HashBackupCodes(codes []string, hash func(string) (string, error)) ([]string, error) {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		h, err := hash(NormalizeBackupCode(c))
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
