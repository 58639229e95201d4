package payments

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// PaymentSetting holds per-gateway stored credentials. Read-only input to the
// gateway adapters; the payment workflow never mutates it.
type PaymentSetting struct {
	ID          uint        `gorm:"primaryKey"`
	Gateway     string      `gorm:"type:varchar(20);uniqueIndex:idx_payment_settings_gateway;not null"`
	Credentials Credentials `gorm:"type:jsonb"`
	IsSandbox   bool        `gorm:"default:true"`
	IsActive    bool        `gorm:"default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Credentials maps credential names (client_id, client_secret, secret_key,
// publishable_key) to their values.
type Credentials map[string]string

func (c Credentials) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func (c *Credentials) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for payment credentials")
	}
	return json.Unmarshal(raw, c)
}
