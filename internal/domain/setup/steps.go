package setup

import (
	"fmt"
	"regexp"
	"strings"

	"licensehub/internal/validation"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// requiredFields lists what each wizard step must provide before it can be
// merged into the draft.
var requiredFields = map[string][]string{
	StepLicense:  {"purchase_code"},
	StepDatabase: {"db_host", "db_name", "db_user"},
	StepAdmin:    {"admin_name", "admin_email", "admin_password"},
	StepSettings: {"site_name", "currency"},
}

// ApplyStep validates the submitted fields for one wizard step and merges
// them into the run's draft. The run only advances when validation passes;
// a failed step leaves the draft untouched.
func ApplyStep(run *InstallationRun, step string, fields map[string]string) error {
	if run.CompletedAt != nil {
		return fmt.Errorf("%w: installation already completed", validation.ErrValidation)
	}
	if step != run.CurrentStep {
		return fmt.Errorf("%w: expected step %q, got %q", validation.ErrValidation, run.CurrentStep, step)
	}

	required, ok := requiredFields[step]
	if !ok {
		return fmt.Errorf("%w: unknown step %q", validation.ErrValidation, step)
	}
	for _, key := range required {
		if strings.TrimSpace(fields[key]) == "" {
			return fmt.Errorf("%w: %s is required", validation.ErrValidation, key)
		}
	}
	if err := validateStepFields(step, fields); err != nil {
		return err
	}

	if run.Draft == nil {
		run.Draft = DraftMap{}
	}
	for key, value := range fields {
		// Passwords are stored verbatim; sanitizing could silently change them.
		if strings.HasSuffix(key, "_password") {
			run.Draft[key] = value
			continue
		}
		run.Draft[key] = validation.SanitizeText(value)
	}
	run.CurrentStep = NextStep(step)
	return nil
}

func validateStepFields(step string, fields map[string]string) error {
	switch step {
	case StepAdmin:
		if !emailRe.MatchString(fields["admin_email"]) {
			return fmt.Errorf("%w: invalid admin email", validation.ErrValidation)
		}
		if len(fields["admin_password"]) < 8 {
			return fmt.Errorf("%w: admin password must be at least 8 characters", validation.ErrValidation)
		}
	case StepSettings:
		if !validation.ValidInvoiceCurrency(fields["currency"]) {
			return fmt.Errorf("%w: unsupported currency", validation.ErrValidation)
		}
	}
	return nil
}

// ReadyToComplete reports whether every step has been applied.
func (r *InstallationRun) ReadyToComplete() bool {
	return r.CompletedAt == nil && r.CurrentStep == StepComplete
}
