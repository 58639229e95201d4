package setup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"licensehub/internal/validation"
)

func newRun() *InstallationRun {
	return &InstallationRun{ID: "run-1", CurrentStep: StepLicense, Draft: DraftMap{}}
}

func TestApplyStep_AdvancesThroughTheSequence(t *testing.T) {
	run := newRun()

	assert.NoError(t, ApplyStep(run, StepLicense, map[string]string{"purchase_code": "ABC-123"}))
	assert.Equal(t, StepDatabase, run.CurrentStep)

	assert.NoError(t, ApplyStep(run, StepDatabase, map[string]string{
		"db_host": "localhost", "db_name": "app", "db_user": "app",
	}))
	assert.Equal(t, StepAdmin, run.CurrentStep)

	assert.NoError(t, ApplyStep(run, StepAdmin, map[string]string{
		"admin_name": "Admin", "admin_email": "admin@example.com", "admin_password": "secret123",
	}))
	assert.Equal(t, StepSettings, run.CurrentStep)

	assert.NoError(t, ApplyStep(run, StepSettings, map[string]string{
		"site_name": "My Shop", "currency": "USD",
	}))
	assert.Equal(t, StepComplete, run.CurrentStep)
	assert.True(t, run.ReadyToComplete())

	assert.Equal(t, "ABC-123", run.Draft["purchase_code"])
	assert.Equal(t, "admin@example.com", run.Draft["admin_email"])
}

func TestApplyStep_RejectsOutOfOrderStep(t *testing.T) {
	run := newRun()

	err := ApplyStep(run, StepAdmin, map[string]string{
		"admin_name": "Admin", "admin_email": "admin@example.com", "admin_password": "secret123",
	})

	assert.ErrorIs(t, err, validation.ErrValidation)
	assert.Equal(t, StepLicense, run.CurrentStep)
	assert.Empty(t, run.Draft)
}

func TestApplyStep_FailedValidationLeavesDraftUntouched(t *testing.T) {
	run := newRun()
	assert.NoError(t, ApplyStep(run, StepLicense, map[string]string{"purchase_code": "ABC"}))
	assert.NoError(t, ApplyStep(run, StepDatabase, map[string]string{
		"db_host": "localhost", "db_name": "app", "db_user": "app",
	}))

	err := ApplyStep(run, StepAdmin, map[string]string{
		"admin_name": "Admin", "admin_email": "not-an-email", "admin_password": "secret123",
	})

	assert.ErrorIs(t, err, validation.ErrValidation)
	assert.Equal(t, StepAdmin, run.CurrentStep)
	assert.NotContains(t, run.Draft, "admin_email")
}

func TestApplyStep_RejectsShortAdminPassword(t *testing.T) {
	run := newRun()
	run.CurrentStep = StepAdmin

	err := ApplyStep(run, StepAdmin, map[string]string{
		"admin_name": "Admin", "admin_email": "admin@example.com", "admin_password": "short",
	})
	assert.ErrorIs(t, err, validation.ErrValidation)
}

func TestApplyStep_RejectsUnsupportedCurrency(t *testing.T) {
	run := newRun()
	run.CurrentStep = StepSettings

	err := ApplyStep(run, StepSettings, map[string]string{
		"site_name": "Shop", "currency": "XYZ",
	})
	assert.ErrorIs(t, err, validation.ErrValidation)
}

func TestApplyStep_PasswordsStoredVerbatim(t *testing.T) {
	run := newRun()
	run.CurrentStep = StepAdmin

	password := "p<a>ss&word1"
	err := ApplyStep(run, StepAdmin, map[string]string{
		"admin_name": "Admin", "admin_email": "admin@example.com", "admin_password": password,
	})

	assert.NoError(t, err)
	assert.Equal(t, password, run.Draft["admin_password"])
}

func TestApplyStep_CompletedRunIsSealed(t *testing.T) {
	run := newRun()
	now := time.Now()
	run.CompletedAt = &now

	err := ApplyStep(run, StepLicense, map[string]string{"purchase_code": "ABC"})
	assert.ErrorIs(t, err, validation.ErrValidation)
}

func TestNextStep(t *testing.T) {
	assert.Equal(t, StepDatabase, NextStep(StepLicense))
	assert.Equal(t, StepAdmin, NextStep(StepDatabase))
	assert.Equal(t, StepSettings, NextStep(StepAdmin))
	assert.Equal(t, StepComplete, NextStep(StepSettings))
	assert.Equal(t, StepComplete, NextStep(StepComplete))
}
