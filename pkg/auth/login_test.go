package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
)

// In-memory fakes mirroring the repository semantics, so the login
// state machine can be exercised without a database.

type fakeAccounts struct {
	byID     map[uuid.UUID]*domain.Account
	byHandle map[string]uuid.UUID
	now      func() time.Time
}

func newFakeAccounts(now func() time.Time) *fakeAccounts {
	return &fakeAccounts{
		byID:     make(map[uuid.UUID]*domain.Account),
		byHandle: make(map[string]uuid.UUID),
		now:      now,
	}
}

func (f *fakeAccounts) add(a *domain.Account) {
	f.byID[a.ID] = a
	f.byHandle[a.Handle] = a.ID
}

func copyAccount(a *domain.Account) *domain.Account {
	cp := *a
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		cp.LockedUntil = &t
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}

func (f *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (f *fakeAccounts) GetByHandle(_ context.Context, handle string) (*domain.Account, error) {
	id, ok := f.byHandle[handle]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return copyAccount(f.byID[id]), nil
}

// RecordFailedAttempt mimics the conditional update: a row that is
// already locked is left untouched and its current state reported.
func (f *fakeAccounts) RecordFailedAttempt(_ context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration) (*domain.LockoutStatus, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if !a.IsLocked {
		a.FailedAttempts++
		if a.FailedAttempts >= maxAttempts {
			a.IsLocked = true
			until := f.now().Add(lockFor)
			a.LockedUntil = &until
		}
	}
	return &domain.LockoutStatus{
		FailedAttempts: a.FailedAttempts,
		Locked:         a.IsLocked,
		LockedUntil:    a.LockedUntil,
	}, nil
}

func (f *fakeAccounts) ResetFailedAttempts(_ context.Context, id uuid.UUID) error {
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.FailedAttempts = 0
	a.IsLocked = false
	a.LockedUntil = nil
	return nil
}

func (f *fakeAccounts) ClearExpiredLock(_ context.Context, id uuid.UUID) error {
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if a.IsLocked && (a.LockedUntil == nil || !a.LockedUntil.After(f.now())) {
		a.FailedAttempts = 0
		a.IsLocked = false
		a.LockedUntil = nil
	}
	return nil
}

func (f *fakeAccounts) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	t := at
	a.LastLoginAt = &t
	return nil
}

type fakeCreds struct {
	hashes map[uuid.UUID]string
}

func (f *fakeCreds) GetByAccountID(_ context.Context, accountID uuid.UUID) (*domain.AccountCredential, error) {
	hash, ok := f.hashes[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &domain.AccountCredential{AccountID: accountID, PasswordHash: hash}, nil
}

type fakeDevices struct {
	devices map[string]*domain.TrustedDevice
	touched int
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{devices: make(map[string]*domain.TrustedDevice)}
}

func deviceKey(accountID uuid.UUID, deviceID string) string {
	return accountID.String() + "/" + deviceID
}

func (f *fakeDevices) Get(_ context.Context, accountID uuid.UUID, deviceID string) (*domain.TrustedDevice, error) {
	d, ok := f.devices[deviceKey(accountID, deviceID)]
	if !ok {
		return nil, domain.ErrDeviceNotFound
	}
	return d, nil
}

func (f *fakeDevices) Upsert(_ context.Context, d *domain.TrustedDevice) error {
	key := deviceKey(d.AccountID, d.DeviceID)
	if existing, ok := f.devices[key]; ok {
		existing.DisplayName = d.DisplayName
		existing.OriginIP = d.OriginIP
		existing.LastUsedAt = d.LastUsedAt
		return nil
	}
	cp := *d
	f.devices[key] = &cp
	return nil
}

func (f *fakeDevices) TouchLastUsed(_ context.Context, accountID uuid.UUID, deviceID string, at time.Time) error {
	d, ok := f.devices[deviceKey(accountID, deviceID)]
	if !ok {
		return domain.ErrDeviceNotFound
	}
	d.LastUsedAt = at
	f.touched++
	return nil
}

type fakeVerifier struct {
	validCode string
	calls     int
}

func (f *fakeVerifier) Verify(_ context.Context, _ uuid.UUID, code string) (bool, error) {
	f.calls++
	return code == f.validCode, nil
}

type fakeIssuer struct {
	issued   int
	lastOpts IssueOpts
}

func (f *fakeIssuer) Issue(_ context.Context, account *domain.Account, opts IssueOpts) (*domain.AuthToken, error) {
	f.issued++
	f.lastOpts = opts
	return &domain.AuthToken{
		Token:     "token-" + account.ID.String(),
		TokenType: "Bearer",
		ExpiresIn: 3600,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

type loginFixture struct {
	service  *LoginService
	accounts *fakeAccounts
	devices  *fakeDevices
	verifier *fakeVerifier
	issuer   *fakeIssuer
	account  *domain.Account
	now      time.Time
}

const (
	testPassword = "Correct-Horse-7"
	testCode     = "246810"
)

var testDevice = DeviceContext{
	IP:        "203.0.113.9",
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0 Safari/537.36",
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	hash, err := HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	account := &domain.Account{
		ID:       uuid.New(),
		Handle:   "jdoe",
		Role:     domain.RoleStudent,
		IsActive: true,
	}

	accounts := newFakeAccounts(clock)
	accounts.add(account)
	creds := &fakeCreds{hashes: map[uuid.UUID]string{account.ID: hash}}
	devices := newFakeDevices()
	verifier := &fakeVerifier{validCode: testCode}
	issuer := &fakeIssuer{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewLoginService(logger, accounts, creds, devices, verifier, issuer)
	service.now = clock

	return &loginFixture{
		service:  service,
		accounts: accounts,
		devices:  devices,
		verifier: verifier,
		issuer:   issuer,
		account:  account,
		now:      now,
	}
}

func TestLogin_Success(t *testing.T) {
	f := newLoginFixture(t)

	result, err := f.service.Login(context.Background(), "jdoe", testPassword, testDevice)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if result.Token == nil {
		t.Fatal("expected a token")
	}
	if result.Challenge != nil {
		t.Error("no challenge expected without a second factor")
	}
	if f.issuer.issued != 1 {
		t.Errorf("issued = %d, want 1", f.issuer.issued)
	}
	if f.account.LastLoginAt == nil || !f.account.LastLoginAt.Equal(f.now) {
		t.Errorf("LastLoginAt = %v, want %v", f.account.LastLoginAt, f.now)
	}
}

func TestLogin_UnknownHandleAndWrongPasswordLookAlike(t *testing.T) {
	f := newLoginFixture(t)

	_, errUnknown := f.service.Login(context.Background(), "nobody", testPassword, testDevice)
	_, errWrong := f.service.Login(context.Background(), "jdoe", "wrong password", testDevice)

	if !errors.Is(errUnknown, domain.ErrInvalidCredentials) {
		t.Errorf("unknown handle error = %v, want ErrInvalidCredentials", errUnknown)
	}
	if !errors.Is(errWrong, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", errWrong)
	}
}

func TestLogin_FailedAttemptsLockAtThreshold(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	for i := 1; i < MaxFailedAttempts; i++ {
		_, err := f.service.Login(ctx, "jdoe", "wrong password", testDevice)

		var credErr *domain.InvalidCredentialsError
		if !errors.As(err, &credErr) {
			t.Fatalf("attempt %d: error = %v, want InvalidCredentialsError", i, err)
		}
		if want := MaxFailedAttempts - i; credErr.RemainingAttempts != want {
			t.Errorf("attempt %d: RemainingAttempts = %d, want %d", i, credErr.RemainingAttempts, want)
		}
		if f.account.IsLocked {
			t.Fatalf("attempt %d: account locked before the threshold", i)
		}
	}

	// Fifth failure trips the lock.
	_, err := f.service.Login(ctx, "jdoe", "wrong password", testDevice)
	var lockErr *domain.AccountLockedError
	if !errors.As(err, &lockErr) {
		t.Fatalf("threshold attempt: error = %v, want AccountLockedError", err)
	}
	if want := f.now.Add(LockoutDuration); !lockErr.Until.Equal(want) {
		t.Errorf("Until = %v, want %v", lockErr.Until, want)
	}
	if !f.account.IsLocked {
		t.Error("account should be locked after the threshold")
	}
}

func TestLogin_LockedAccountRejectsEvenCorrectPassword(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	until := f.now.Add(10 * time.Minute)
	f.account.IsLocked = true
	f.account.LockedUntil = &until
	f.account.FailedAttempts = MaxFailedAttempts

	_, err := f.service.Login(ctx, "jdoe", testPassword, testDevice)
	var lockErr *domain.AccountLockedError
	if !errors.As(err, &lockErr) {
		t.Fatalf("error = %v, want AccountLockedError", err)
	}
	if !lockErr.Until.Equal(until) {
		t.Errorf("Until = %v, want %v", lockErr.Until, until)
	}
	if f.issuer.issued != 0 {
		t.Error("no session may be issued while locked")
	}
}

func TestLogin_AttemptsWhileLockedDoNotExtendTheLock(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	until := f.now.Add(10 * time.Minute)
	f.account.IsLocked = true
	f.account.LockedUntil = &until
	f.account.FailedAttempts = MaxFailedAttempts

	for i := 0; i < 3; i++ {
		_, err := f.service.Login(ctx, "jdoe", "wrong password", testDevice)
		var lockErr *domain.AccountLockedError
		if !errors.As(err, &lockErr) {
			t.Fatalf("error = %v, want AccountLockedError", err)
		}
		if !lockErr.Until.Equal(until) {
			t.Errorf("Until = %v, want unchanged %v", lockErr.Until, until)
		}
	}

	if f.account.FailedAttempts != MaxFailedAttempts {
		t.Errorf("FailedAttempts = %d, want unchanged %d", f.account.FailedAttempts, MaxFailedAttempts)
	}
	if !f.account.LockedUntil.Equal(until) {
		t.Errorf("LockedUntil = %v, want unchanged %v", f.account.LockedUntil, until)
	}
}

func TestLogin_ExpiredLockAutoUnlocks(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	past := f.now.Add(-time.Minute)
	f.account.IsLocked = true
	f.account.LockedUntil = &past
	f.account.FailedAttempts = MaxFailedAttempts

	result, err := f.service.Login(ctx, "jdoe", testPassword, testDevice)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == nil {
		t.Fatal("expected a token after auto-unlock")
	}
	if f.account.IsLocked || f.account.FailedAttempts != 0 || f.account.LockedUntil != nil {
		t.Errorf("lock state not fully cleared: locked=%v attempts=%d until=%v",
			f.account.IsLocked, f.account.FailedAttempts, f.account.LockedUntil)
	}
}

func TestLogin_ExpiredLockRestartsCounterOnFailure(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	past := f.now.Add(-time.Minute)
	f.account.IsLocked = true
	f.account.LockedUntil = &past
	f.account.FailedAttempts = MaxFailedAttempts

	_, err := f.service.Login(ctx, "jdoe", "wrong password", testDevice)
	var credErr *domain.InvalidCredentialsError
	if !errors.As(err, &credErr) {
		t.Fatalf("error = %v, want InvalidCredentialsError", err)
	}
	if want := MaxFailedAttempts - 1; credErr.RemainingAttempts != want {
		t.Errorf("RemainingAttempts = %d, want %d (counter restarted)", credErr.RemainingAttempts, want)
	}
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	f.account.FailedAttempts = 3

	if _, err := f.service.Login(ctx, "jdoe", testPassword, testDevice); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if f.account.FailedAttempts != 0 {
		t.Errorf("FailedAttempts = %d, want 0", f.account.FailedAttempts)
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newLoginFixture(t)

	f.account.IsActive = false

	_, err := f.service.Login(context.Background(), "jdoe", testPassword, testDevice)
	if !errors.Is(err, domain.ErrAccountInactive) {
		t.Errorf("error = %v, want ErrAccountInactive", err)
	}
}

func TestLogin_SecondFactorChallengeFromUnknownDevice(t *testing.T) {
	f := newLoginFixture(t)

	f.account.SecondFactorEnabled = true

	result, err := f.service.Login(context.Background(), "jdoe", testPassword, testDevice)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if result.Challenge == nil {
		t.Fatal("expected a second-factor challenge")
	}
	if result.Token != nil {
		t.Error("no token may be issued before the code is verified")
	}
	if result.Challenge.AccountID != f.account.ID {
		t.Errorf("Challenge.AccountID = %v, want %v", result.Challenge.AccountID, f.account.ID)
	}
	if want := Fingerprint(testDevice); result.Challenge.DeviceID != want {
		t.Errorf("Challenge.DeviceID = %q, want %q", result.Challenge.DeviceID, want)
	}
	if result.Challenge.SuggestedDeviceName != "Chrome on Windows" {
		t.Errorf("SuggestedDeviceName = %q", result.Challenge.SuggestedDeviceName)
	}
	if f.issuer.issued != 0 {
		t.Error("no session may be issued for a challenged login")
	}
	if f.account.LastLoginAt != nil {
		t.Error("a challenged login is not a completed login")
	}
}

func TestLogin_TrustedDeviceSkipsSecondFactor(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	f.account.SecondFactorEnabled = true
	deviceID := Fingerprint(testDevice)
	f.devices.devices[deviceKey(f.account.ID, deviceID)] = &domain.TrustedDevice{
		AccountID: f.account.ID,
		DeviceID:  deviceID,
	}

	result, err := f.service.Login(ctx, "jdoe", testPassword, testDevice)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if result.Challenge != nil {
		t.Error("trusted device should not be challenged")
	}
	if result.Token == nil {
		t.Fatal("expected a token")
	}
	if f.verifier.calls != 0 {
		t.Error("verifier must not be consulted for a trusted device")
	}
	if f.devices.touched != 1 {
		t.Errorf("trusted device touched %d times, want 1", f.devices.touched)
	}
	if !f.issuer.lastOpts.SecondFactor {
		t.Error("session should record the second factor as satisfied")
	}
}

func TestCompleteSecondFactor_WrongCode(t *testing.T) {
	f := newLoginFixture(t)

	f.account.SecondFactorEnabled = true
	f.account.FailedAttempts = 2

	_, err := f.service.CompleteSecondFactor(context.Background(), f.account.ID, "999999", true, testDevice)
	if !errors.Is(err, domain.ErrInvalidSecondFactorCode) {
		t.Fatalf("error = %v, want ErrInvalidSecondFactorCode", err)
	}

	// Code guessing never feeds the password lockout counters.
	if f.account.FailedAttempts != 2 {
		t.Errorf("FailedAttempts = %d, want unchanged 2", f.account.FailedAttempts)
	}
	if len(f.devices.devices) != 0 {
		t.Error("no device may be trusted after a failed code")
	}
	if f.issuer.issued != 0 {
		t.Error("no session may be issued after a failed code")
	}
}

func TestCompleteSecondFactor_SuccessWithTrust(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	f.account.SecondFactorEnabled = true

	result, err := f.service.CompleteSecondFactor(ctx, f.account.ID, testCode, true, testDevice)
	if err != nil {
		t.Fatalf("CompleteSecondFactor() error = %v", err)
	}

	if result.Token == nil {
		t.Fatal("expected a token")
	}
	if !f.issuer.lastOpts.SecondFactor {
		t.Error("session should record the verified second factor")
	}

	deviceID := Fingerprint(testDevice)
	d, ok := f.devices.devices[deviceKey(f.account.ID, deviceID)]
	if !ok {
		t.Fatal("device should be trusted after opting in")
	}
	if d.DisplayName != "Chrome on Windows" {
		t.Errorf("DisplayName = %q", d.DisplayName)
	}
	if d.OriginIP != testDevice.IP {
		t.Errorf("OriginIP = %q, want %q", d.OriginIP, testDevice.IP)
	}
}

func TestCompleteSecondFactor_TrustIsIdempotent(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	f.account.SecondFactorEnabled = true

	for i := 0; i < 2; i++ {
		if _, err := f.service.CompleteSecondFactor(ctx, f.account.ID, testCode, true, testDevice); err != nil {
			t.Fatalf("CompleteSecondFactor() error = %v", err)
		}
	}

	if len(f.devices.devices) != 1 {
		t.Errorf("trusted devices = %d, want 1", len(f.devices.devices))
	}
}

func TestCompleteSecondFactor_WithoutTrust(t *testing.T) {
	f := newLoginFixture(t)

	f.account.SecondFactorEnabled = true

	result, err := f.service.CompleteSecondFactor(context.Background(), f.account.ID, testCode, false, testDevice)
	if err != nil {
		t.Fatalf("CompleteSecondFactor() error = %v", err)
	}
	if result.Token == nil {
		t.Fatal("expected a token")
	}
	if len(f.devices.devices) != 0 {
		t.Error("device must not be trusted without opting in")
	}
}

func TestCompleteSecondFactor_UnknownAccount(t *testing.T) {
	f := newLoginFixture(t)

	_, err := f.service.CompleteSecondFactor(context.Background(), uuid.New(), testCode, false, testDevice)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}
