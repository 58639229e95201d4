package setup

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Wizard steps, in order.
const (
	StepLicense  = "license"
	StepDatabase = "database"
	StepAdmin    = "admin"
	StepSettings = "settings"
	StepComplete = "complete"
)

// InstallationRun is the persisted draft configuration for one installer
// session. Each wizard step validates its input and merges it into this
// record; no ambient session state is involved.
type InstallationRun struct {
	ID          string   `gorm:"type:uuid;primaryKey"`
	CurrentStep string   `gorm:"type:varchar(20);default:'license'"`
	Draft       DraftMap `gorm:"type:jsonb"`
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type DraftMap map[string]string

func (d DraftMap) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *DraftMap) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for installation draft")
	}
	return json.Unmarshal(raw, d)
}

// NextStep returns the step that follows s, or complete when the sequence is
// exhausted.
func NextStep(s string) string {
	switch s {
	case StepLicense:
		return StepDatabase
	case StepDatabase:
		return StepAdmin
	case StepAdmin:
		return StepSettings
	default:
		return StepComplete
	}
}
