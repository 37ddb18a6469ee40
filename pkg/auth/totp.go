package auth

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/opencampus/registrar/pkg/domain"
	"github.com/opencampus/registrar/pkg/repository"
)

// TOTP parameters. Codes from the current step plus/minus two steps are
// accepted, tolerating about a minute of clock skew.
const (
	totpPeriod = 30
	totpSkew   = 2
)

// SecondFactorConfig contains configuration for the second-factor service.
type SecondFactorConfig struct {
	Issuer        string // label shown in authenticator apps
	EncryptionKey []byte // 32 bytes for AES-256
}

// SecondFactorService handles TOTP provisioning and verification.
type SecondFactorService struct {
	config   SecondFactorConfig
	db       *sql.DB
	secrets  *repository.SecondFactorsRepository
	accounts *repository.AccountsRepository
	creds    *repository.CredentialsRepository
	devices  *repository.TrustedDevicesRepository
}

// NewSecondFactorService creates a new second-factor service.
func NewSecondFactorService(
	config SecondFactorConfig,
	db *sql.DB,
	secrets *repository.SecondFactorsRepository,
	accounts *repository.AccountsRepository,
	creds *repository.CredentialsRepository,
	devices *repository.TrustedDevicesRepository,
) *SecondFactorService {
	return &SecondFactorService{
		config:   config,
		db:       db,
		secrets:  secrets,
		accounts: accounts,
		creds:    creds,
		devices:  devices,
	}
}

// BeginSetup generates a fresh secret and enrollment URI for an
// account. The secret is stored (replacing any unconfirmed one) but the
// account's second factor stays disabled until ConfirmSetup.
func (s *SecondFactorService) BeginSetup(ctx context.Context, accountID uuid.UUID) (*domain.SecondFactorSetup, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.SecondFactorEnabled {
		return nil, domain.ErrSecondFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: account.Handle,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	var qrBuf bytes.Buffer
	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code image: %w", err)
	}
	if err := png.Encode(&qrBuf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	encryptedSecret, err := s.encryptSecret(key.Secret())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt TOTP secret: %w", err)
	}

	if err := s.secrets.Upsert(ctx, &domain.SecondFactor{
		ID:              uuid.New(),
		AccountID:       accountID,
		SecretEncrypted: encryptedSecret,
		CreatedAt:       time.Now(),
	}); err != nil {
		return nil, err
	}

	return &domain.SecondFactorSetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCodeDataURI:   fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(qrBuf.Bytes())),
	}, nil
}

// ConfirmSetup verifies one code against the stored secret and enables
// the second factor.
func (s *SecondFactorService) ConfirmSetup(ctx context.Context, accountID uuid.UUID, code string) error {
	ok, err := s.Verify(ctx, accountID, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidSecondFactorCode
	}

	return s.accounts.SetSecondFactorEnabled(ctx, accountID, true)
}

// Verify validates a submitted code against the account's stored secret.
// Returns ErrSecondFactorNotConfigured when provisioning has not begun.
func (s *SecondFactorService) Verify(ctx context.Context, accountID uuid.UUID, code string) (bool, error) {
	sf, err := s.secrets.GetByAccountID(ctx, accountID)
	if err != nil {
		return false, err
	}

	secret, err := s.decryptSecret(sf.SecretEncrypted)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}

	valid := VerifyCode(secret, code, time.Now())
	if valid {
		if err := s.secrets.UpdateLastUsed(ctx, sf.ID); err != nil {
			return false, fmt.Errorf("failed to update last used: %w", err)
		}
	}
	return valid, nil
}

// Disable turns the second factor off. It requires both the current
// password and a valid code, then clears the secret and revokes every
// trusted device: device trust is only meaningful while a second factor
// is active.
func (s *SecondFactorService) Disable(ctx context.Context, accountID uuid.UUID, password, code string) error {
	cred, err := s.creds.GetByAccountID(ctx, accountID)
	if err != nil {
		return err
	}
	if !VerifyPassword(password, cred.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	ok, err := s.Verify(ctx, accountID, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidSecondFactorCode
	}

	return repository.Tx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.secrets.DeleteByAccountIDTx(ctx, tx, accountID); err != nil {
			return err
		}
		if err := s.devices.DeleteAllByAccountIDTx(ctx, tx, accountID); err != nil {
			return err
		}
		return s.accounts.SetSecondFactorEnabledTx(ctx, tx, accountID, false)
	})
}

// Status reports whether the second factor is enabled and whether setup
// has been started.
func (s *SecondFactorService) Status(ctx context.Context, accountID uuid.UUID) (enabled, pending bool, err error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return false, false, err
	}
	if account.SecondFactorEnabled {
		return true, false, nil
	}

	_, err = s.secrets.GetByAccountID(ctx, accountID)
	if errors.Is(err, domain.ErrSecondFactorNotConfigured) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return false, true, nil
}

// VerifyCode checks a submitted code against a base32 secret at a given
// time using the standard 30-second-step algorithm.
func VerifyCode(secret, code string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

// encryptSecret encrypts a plaintext secret using AES-256-GCM.
func (s *SecondFactorService) encryptSecret(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decryptSecret decrypts an encrypted secret using AES-256-GCM.
func (s *SecondFactorService) decryptSecret(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}
