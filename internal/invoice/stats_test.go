package invoice

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"licensehub/internal/domain/invoices"
	"licensehub/testutils"
)

func TestPeriodWindow(t *testing.T) {
	// Wednesday 2026-03-18 14:30 UTC
	now := time.Date(2026, 3, 18, 14, 30, 0, 0, time.UTC)

	start, end, err := periodWindow("day", now)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 19, 0, 0, 0, 0, time.UTC), end)

	start, end, err = periodWindow("week", now)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), start, "week starts Monday")
	assert.Equal(t, time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC), end)

	start, end, err = periodWindow("month", now)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), end)

	start, end, err = periodWindow("year", now)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), end)

	_, _, err = periodWindow("quarter", now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPeriodWindow_SundayBelongsToCurrentWeek(t *testing.T) {
	sunday := time.Date(2026, 3, 22, 10, 0, 0, 0, time.UTC)

	start, end, err := periodWindow("week", sunday)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC), end)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, percentage(5, 0), "empty ledger yields zero, not NaN")
	assert.Equal(t, 50.0, percentage(1, 2))
	assert.Equal(t, 33.33, percentage(1, 3))
	assert.Equal(t, 100.0, percentage(4, 4))
}

func TestGetOverdueInvoices_ComputesDaysOverdue(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	due := time.Now().AddDate(0, 0, -10)
	mock.ExpectQuery(`SELECT \* FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_number", "user_id", "status", "due_date"}).
			AddRow(1, "INV-AAAA1111", 3, invoices.StatusPending, due).
			AddRow(2, "INV-BBBB2222", 4, invoices.StatusOverdue, nil))

	overdue, err := GetOverdueInvoices(db)

	assert.NoError(t, err)
	if assert.Len(t, overdue, 2) {
		assert.Equal(t, "INV-AAAA1111", overdue[0].InvoiceNumber)
		assert.Equal(t, 10, overdue[0].DaysOverdue)
		assert.Equal(t, 0, overdue[1].DaysOverdue, "missing due date reports zero days")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
