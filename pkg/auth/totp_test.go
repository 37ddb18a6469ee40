package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func testSecondFactorService() *SecondFactorService {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return &SecondFactorService{
		config: SecondFactorConfig{
			Issuer:        "Test Campus",
			EncryptionKey: key,
		},
	}
}

func TestSecondFactorService_EncryptDecrypt(t *testing.T) {
	service := testSecondFactorService()

	tests := []struct {
		name      string
		plaintext string
	}{
		{"totp secret", "JBSWY3DPEHPK3PXP"},
		{"empty string", ""},
		{"long text", strings.Repeat("a", 1000)},
		{"special characters", "!@#$%^&*()_+-=[]{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := service.encryptSecret(tt.plaintext)
			if err != nil {
				t.Fatalf("encryptSecret() error = %v", err)
			}
			if encrypted == tt.plaintext && tt.plaintext != "" {
				t.Error("ciphertext should differ from plaintext")
			}

			decrypted, err := service.decryptSecret(encrypted)
			if err != nil {
				t.Fatalf("decryptSecret() error = %v", err)
			}
			if decrypted != tt.plaintext {
				t.Errorf("decryptSecret() = %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestSecondFactorService_EncryptNondeterministic(t *testing.T) {
	service := testSecondFactorService()

	c1, err := service.encryptSecret("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("encryptSecret() error = %v", err)
	}
	c2, err := service.encryptSecret("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("encryptSecret() error = %v", err)
	}
	if c1 == c2 {
		t.Error("two encryptions of the same secret should differ (random nonce)")
	}
}

func TestSecondFactorService_DecryptInvalid(t *testing.T) {
	service := testSecondFactorService()

	tests := []struct {
		name      string
		encrypted string
	}{
		{"not base64", "not valid base64!!!"},
		{"too short", "YWJj"},
		{"garbage ciphertext", strings.Repeat("QUFBQQ", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.decryptSecret(tt.encrypted); err == nil {
				t.Error("decryptSecret should fail on invalid input")
			}
		})
	}
}

func TestSecondFactorService_DecryptWrongKey(t *testing.T) {
	service := testSecondFactorService()

	encrypted, err := service.encryptSecret("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("encryptSecret() error = %v", err)
	}

	other := testSecondFactorService()
	other.config.EncryptionKey = make([]byte, 32) // all zeros

	if _, err := other.decryptSecret(encrypted); err == nil {
		t.Error("decryptSecret should fail with the wrong key")
	}
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom() error = %v", err)
	}
	return code
}

func TestVerifyCode_SkewWindow(t *testing.T) {
	const secret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	now := time.Date(2026, 3, 10, 12, 0, 15, 0, time.UTC)

	tests := []struct {
		name   string
		codeAt time.Time
		want   bool
	}{
		{"current step", now, true},
		{"one step behind", now.Add(-totpPeriod * time.Second), true},
		{"two steps behind", now.Add(-2 * totpPeriod * time.Second), true},
		{"one step ahead", now.Add(totpPeriod * time.Second), true},
		{"two steps ahead", now.Add(2 * totpPeriod * time.Second), true},
		{"three steps behind", now.Add(-3 * totpPeriod * time.Second), false},
		{"three steps ahead", now.Add(3 * totpPeriod * time.Second), false},
		{"ten minutes stale", now.Add(-10 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := codeAt(t, secret, tt.codeAt)
			if got := VerifyCode(secret, code, now); got != tt.want {
				t.Errorf("VerifyCode(code from %v at %v) = %v, want %v", tt.codeAt, now, got, tt.want)
			}
		})
	}
}

func TestVerifyCode_RejectsGarbage(t *testing.T) {
	const secret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	now := time.Now()

	for _, code := range []string{"", "abcdef", "12345", "1234567"} {
		if VerifyCode(secret, code, now) {
			t.Errorf("VerifyCode(%q) should be false", code)
		}
	}
}
