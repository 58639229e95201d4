package licenses

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"licensehub/testutils"
)

func TestMain(m *testing.M) {
	testutils.InitTestMain()
	os.Exit(m.Run())
}

func grantRequest() *http.Request {
	body := bytes.NewBufferString(`{"user_id":7,"product_id":3,"invoice_status":"pending"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/licenses", body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func expectGrantLookups(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "buyer@example.com"))
	mock.ExpectQuery(`SELECT \* FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "currency", "license_type", "renewal_period", "support_days", "max_domains"}).
			AddRow(3, "Pro", "29.99", "USD", "standard", "annual", 0, 1))
}

func TestGrantLicense_IssuesLicenseAndInvoiceInOneTransaction(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	expectGrantLookups(mock)
	mock.ExpectBegin()
	// No active license yet, so a fresh one is created.
	mock.ExpectQuery(`SELECT \* FROM "licenses"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "licenses"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(`SAVEPOINT`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectCommit()

	r := testutils.SetupTestRouter()
	r.POST("/admin/licenses", GrantLicense)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, grantRequest())

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "license_key")
	assert.Contains(t, w.Body.String(), "invoice_number")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantLicense_InvoiceFailureRollsBackLicense(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	expectGrantLookups(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "licenses"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "licenses"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(`SAVEPOINT`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "invoices"`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	r := testutils.SetupTestRouter()
	r.POST("/admin/licenses", GrantLicense)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, grantRequest())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet(), "the whole grant must roll back")
}

func TestGrantLicense_MissingIDsRejected(t *testing.T) {
	r := testutils.SetupTestRouter()
	r.POST("/admin/licenses", GrantLicense)

	req := httptest.NewRequest(http.MethodPost, "/admin/licenses", bytes.NewBufferString(`{"user_id":7}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
