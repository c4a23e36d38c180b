package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tenantguard/internal/model"
	"github.com/MrEthical07/tenantguard/internal/stores"
)

// OTP generates and checks time-based one-time codes.
type OTP interface {
	Generate(accountName string) (secret, uri string, err error)
	QRCode(uri string) (string, error)
	Validate(secret, code string) bool
}

// MFASetupResult is returned once per enrollment. It is the only place the
// plaintext backup codes ever appear.
type MFASetupResult struct {
	QRCode      string
	Secret      string
	BackupCodes []string
}

// MFAMetrics carries metric IDs used by the MFA flows.
type MFAMetrics struct {
	SetupStarted int
	Enabled      int
	VerifyFailed int
}

// MFAEvents carries audit event names used by the MFA flows.
type MFAEvents struct {
	SetupStarted string
	Enabled      string
	VerifyFailed string
}

// MFADeps captures MFA enrollment dependencies.
type MFADeps struct {
	Hooks

	Users      model.UserStore
	Tenants    model.TenantStore
	Enrollment stores.EnrollmentStore
	OTP        OTP

	NewBackupCodes  func() ([]string, error)
	HashBackupCodes func([]string) ([]string, error)
	SetupTTL        time.Duration

	Metrics MFAMetrics
	Events  MFAEvents
	Errors  Errors
}

func (d MFADeps) ready() bool {
	return d.Users != nil && d.Enrollment != nil && d.OTP != nil && d.NewBackupCodes != nil && d.HashBackupCodes != nil
}

// RunSetupMFA generates a secret and backup codes for userID and parks them
// in the enrollment store for SetupTTL. Which backend accepted the state is
// not visible to the caller.
func RunSetupMFA(ctx context.Context, userID string, deps MFADeps) (*MFASetupResult, error) {
	h := deps.Hooks.withDefaults()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	user, err := deps.Users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, deps.Errors.Unauthorized
		}
		return nil, storeFailure(deps.Errors, err)
	}
	if user.MFAEnabled {
		return nil, deps.Errors.MFAAlreadyEnabled
	}

	label := user.Email
	if deps.Tenants != nil {
		if tenant, err := deps.Tenants.FindTenantByID(ctx, user.TenantID); err == nil && tenant.Name != "" {
			label = fmt.Sprintf("%s (%s)", user.Email, tenant.Name)
		}
	}

	secret, uri, err := deps.OTP.Generate(label)
	if err != nil {
		return nil, err
	}
	qr, err := deps.OTP.QRCode(uri)
	if err != nil {
		return nil, err
	}
	codes, err := deps.NewBackupCodes()
	if err != nil {
		return nil, err
	}

	now := h.Now()
	state := &model.MFAEnrollmentState{
		Secret:      secret,
		BackupCodes: codes,
		CreatedAt:   now,
		ExpiresAt:   now.Add(deps.SetupTTL),
	}
	if err := deps.Enrollment.Put(ctx, user.ID, state, deps.SetupTTL); err != nil {
		return nil, storeFailure(deps.Errors, err)
	}

	h.MetricInc(deps.Metrics.SetupStarted)
	h.Audit(ctx, AuditRecord{
		Type:     deps.Events.SetupStarted,
		Success:  true,
		UserID:   user.ID,
		TenantID: user.TenantID,
	})

	return &MFASetupResult{QRCode: qr, Secret: secret, BackupCodes: codes}, nil
}

// RunVerifyMFA checks code against the pending enrollment and, on a match,
// enables MFA in one store update. A wrong code keeps the enrollment so the
// user can retry until it expires.
func RunVerifyMFA(ctx context.Context, userID, code string, deps MFADeps) error {
	h := deps.Hooks.withDefaults()
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	user, err := deps.Users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return deps.Errors.Unauthorized
		}
		return storeFailure(deps.Errors, err)
	}
	if user.MFAEnabled {
		return deps.Errors.MFASetupExpired
	}

	state, err := deps.Enrollment.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, stores.ErrEnrollmentNotFound) || errors.Is(err, stores.ErrEnrollmentExpired) {
			return deps.Errors.MFASetupExpired
		}
		return storeFailure(deps.Errors, err)
	}

	if !deps.OTP.Validate(state.Secret, code) {
		h.MetricInc(deps.Metrics.VerifyFailed)
		h.Audit(ctx, AuditRecord{
			Type:     deps.Events.VerifyFailed,
			UserID:   user.ID,
			TenantID: user.TenantID,
			Err:      deps.Errors.MFACodeInvalid,
		})
		return deps.Errors.MFACodeInvalid
	}

	hashes, err := deps.HashBackupCodes(state.BackupCodes)
	if err != nil {
		return fmt.Errorf("hash backup codes: %w", err)
	}
	if err := deps.Users.EnableMFA(ctx, user.ID, state.Secret, hashes); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return deps.Errors.MFASetupExpired
		}
		return storeFailure(deps.Errors, err)
	}

	// the durable copy went away with EnableMFA; only a cached copy can remain
	if f, ok := deps.Enrollment.(interface {
		DeleteCached(ctx context.Context, userID string)
	}); ok {
		f.DeleteCached(ctx, user.ID)
	} else if err := deps.Enrollment.Delete(ctx, user.ID); err != nil {
		h.Warn("tenantguard: mfa enrollment cleanup failed for user %s: %v", user.ID, err)
	}

	h.MetricInc(deps.Metrics.Enabled)
	h.Audit(ctx, AuditRecord{
		Type:     deps.Events.Enabled,
		Success:  true,
		UserID:   user.ID,
		TenantID: user.TenantID,
	})
	return nil
}
