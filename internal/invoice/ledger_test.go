package invoice

import (
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"licensehub/internal/domain/invoices"
	"licensehub/internal/domain/licenses"
	"licensehub/internal/domain/products"
	"licensehub/internal/domain/users"
	"licensehub/internal/validation"
	"licensehub/testutils"
)

func TestMain(m *testing.M) {
	testutils.InitTestMain()
	os.Exit(m.Run())
}

func TestNewInvoiceNumberFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		number := newInvoiceNumber()
		assert.True(t, validation.ValidInvoiceNumber(number), "bad number %q", number)
		seen[number] = true
	}
	// 100 draws from a 36^8 space should not collide.
	assert.Len(t, seen, 100)
}

func TestCreatePaymentInvoice_RejectsBadInputWithoutWriting(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	user := &users.User{ID: 1}
	lic := &licenses.License{ID: 2}
	product := &products.Product{ID: 3}
	amount := decimal.NewFromFloat(49.99)

	cases := []struct {
		name string
		run  func() error
	}{
		{"nil user", func() error {
			_, err := CreatePaymentInvoice(db, nil, lic, product, amount, "USD", "stripe", "tx1")
			return err
		}},
		{"zero amount", func() error {
			_, err := CreatePaymentInvoice(db, user, lic, product, decimal.Zero, "USD", "stripe", "tx1")
			return err
		}},
		{"negative amount", func() error {
			_, err := CreatePaymentInvoice(db, user, lic, product, decimal.NewFromInt(-1), "USD", "stripe", "tx1")
			return err
		}},
		{"missing currency", func() error {
			_, err := CreatePaymentInvoice(db, user, lic, product, amount, "", "stripe", "tx1")
			return err
		}},
		{"missing gateway", func() error {
			_, err := CreatePaymentInvoice(db, user, lic, product, amount, "USD", "", "tx1")
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// No SQL was expected and none may have run.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelInvoice_PaidIsRefused(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "user_id"}).
			AddRow(10, invoices.StatusPaid, 1))

	err := CancelInvoice(db, 10)

	assert.ErrorIs(t, err, ErrCancelPaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelInvoice_DoubleCancelIsNoOp(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "user_id"}).
			AddRow(10, invoices.StatusCancelled, 1))

	err := CancelInvoice(db, 10)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateInvoiceStatus_RejectsUnknownStatus(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	err := UpdateInvoiceStatus(db, 10, "refunded")

	assert.ErrorIs(t, err, ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStatus_StampsPaidAtOnFirstPaidTransition(t *testing.T) {
	now := time.Now()
	inv := &invoices.Invoice{Status: invoices.StatusPending}

	applyStatus(inv, invoices.StatusPaid, now)

	assert.Equal(t, invoices.StatusPaid, inv.Status)
	if assert.NotNil(t, inv.PaidAt) {
		assert.Equal(t, now, *inv.PaidAt)
	}
}

func TestApplyStatus_RepeatedPaidKeepsOriginalTimestamp(t *testing.T) {
	original := time.Now().AddDate(0, 0, -7)
	inv := &invoices.Invoice{Status: invoices.StatusPaid, PaidAt: &original}

	applyStatus(inv, invoices.StatusPaid, time.Now())

	assert.Equal(t, invoices.StatusPaid, inv.Status)
	if assert.NotNil(t, inv.PaidAt) {
		assert.Equal(t, original, *inv.PaidAt)
	}
}

func TestUpdateInvoiceStatus_PaidToPaidKeepsPaidAt(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	original := time.Now().AddDate(0, 0, -7)

	mock.ExpectQuery(`SELECT \* FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "user_id", "paid_at"}).
			AddRow(10, invoices.StatusPaid, 1, original))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "invoices"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := UpdateInvoiceStatus(db, 10, invoices.StatusPaid)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByTransaction_MissingRowIsNotAnError(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	inv, err := FindByTransaction(db, "stripe", "cs_test_unknown")

	assert.NoError(t, err)
	assert.Nil(t, inv)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByTransaction_ReturnsRecordedInvoice(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "invoice_number", "status", "license_id"}).
			AddRow(42, 1, "INV-AAAA1111", invoices.StatusPaid, nil))

	inv, err := FindByTransaction(db, "stripe", "cs_test_done")

	assert.NoError(t, err)
	if assert.NotNil(t, inv) {
		assert.Equal(t, uint(42), inv.ID)
		assert.Equal(t, "INV-AAAA1111", inv.InvoiceNumber)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetInvoicesByStatus_RejectsUnknownStatus(t *testing.T) {
	db, _, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	_, err := GetInvoicesByStatus(db, "refunded", 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateInitialInvoice_DefaultsDueDateAndStatus(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	price := decimal.NewFromFloat(99.00)
	lic := &licenses.License{
		ID:      5,
		UserID:  1,
		Product: &products.Product{ID: 3, Price: price, Currency: "EUR"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	inv, err := CreateInitialInvoice(db, lic, "not-a-status", nil)

	assert.NoError(t, err)
	assert.Equal(t, invoices.StatusPending, inv.Status, "unknown payment status falls back to pending")
	assert.Nil(t, inv.PaidAt)
	assert.Equal(t, "EUR", inv.Currency)
	assert.True(t, inv.Amount.Equal(price))
	if assert.NotNil(t, inv.DueDate) {
		expected := time.Now().AddDate(0, 0, 30)
		assert.WithinDuration(t, expected, *inv.DueDate, time.Minute)
	}
	assert.True(t, validation.ValidInvoiceNumber(inv.InvoiceNumber))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCustomInvoice_MarksMetadata(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	user := &users.User{ID: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	inv, err := CreateCustomInvoice(db, user, decimal.NewFromFloat(150.555), "usd", "paypal", "CAP-99")

	assert.NoError(t, err)
	assert.Equal(t, invoices.StatusPaid, inv.Status)
	assert.NotNil(t, inv.PaidAt)
	assert.Nil(t, inv.LicenseID)
	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, "150.56", inv.Amount.StringFixed(2))
	assert.Equal(t, "true", inv.Metadata["is_custom"])
	assert.Equal(t, "paypal", inv.Metadata["gateway"])
	assert.Equal(t, "CAP-99", inv.Metadata["transaction_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
