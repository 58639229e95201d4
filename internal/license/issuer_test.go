package license

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"licensehub/internal/domain/products"
)

var licenseKeyRe = regexp.MustCompile(`^[A-F0-9]{8}-[A-F0-9]{4}-[A-F0-9]{4}-[A-F0-9]{4}-[A-F0-9]{12}$`)

func TestNewLicenseKey(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		key := NewLicenseKey()
		assert.Regexp(t, licenseKeyRe, key)
		seen[key] = true
	}
	assert.Len(t, seen, 50)
}

func TestRenewalDaysFor(t *testing.T) {
	cases := map[string]int{
		"monthly":     30,
		"quarterly":   90,
		"semi-annual": 180,
		"annual":      365,
		"three-years": 1095,
		"":            365,
		"bogus":       365,
	}
	for period, want := range cases {
		got := renewalDaysFor(&products.Product{RenewalPeriod: period})
		assert.Equal(t, want, got, "period %q", period)
	}
}

func TestExpiryFor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	annual := expiryFor(&products.Product{RenewalPeriod: "annual"}, now)
	if assert.NotNil(t, annual) {
		assert.Equal(t, now.AddDate(0, 0, 365), *annual)
	}

	assert.Nil(t, expiryFor(&products.Product{RenewalPeriod: "lifetime"}, now))
	assert.Nil(t, expiryFor(&products.Product{LicenseType: "lifetime"}, now))
}

func TestSupportExpiryFor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	support := supportExpiryFor(&products.Product{SupportDays: 90}, now)
	if assert.NotNil(t, support) {
		assert.Equal(t, now.AddDate(0, 0, 90), *support)
	}

	assert.Nil(t, supportExpiryFor(&products.Product{SupportDays: 0}, now))
}
