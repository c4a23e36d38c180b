package tenantguard

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretBytes = 20
	qrCodeSize      = 200
)

type totpManager struct {
	config MFAConfig
	now    func() time.Time
}

func newTOTPManager(cfg MFAConfig, now func() time.Time) *totpManager {
	if now == nil {
		now = time.Now
	}
	return &totpManager{config: cfg, now: now}
}

func (m *totpManager) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(m.config.Period),
		Skew:      uint(m.config.Skew),
		Digits:    otp.Digits(m.config.Digits),
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Generate returns a base32 secret and its otpauth:// enrollment URI.
func (m *totpManager) Generate(accountName string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: accountName,
		Period:      uint(m.config.Period),
		SecretSize:  totpSecretBytes,
		Digits:      otp.Digits(m.config.Digits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// QRCode renders uri as a PNG data URL.
func (m *totpManager) QRCode(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", err
	}
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Validate checks code against secret at the current time, accepting
// config.Skew steps of drift either way.
func (m *totpManager) Validate(secret, code string) bool {
	return m.validateAt(secret, code, m.now())
}

func (m *totpManager) validateAt(secret, code string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if secret == "" || len(code) != m.config.Digits {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), m.validateOpts())
	return err == nil && ok
}
