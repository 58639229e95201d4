package webhooks

import (
	"bytes"
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

func TestHandleWebhook_UnknownGatewayIs404(t *testing.T) {
	r := testutils.SetupTestRouter()
	r.POST("/webhooks/:gateway", HandleWebhook)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/venmo", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Unknown gateway")
}

func TestHandleWebhook_UnconfiguredGatewayIs503(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	// No active settings row for paypal.
	mock.ExpectQuery(`SELECT \* FROM "payment_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "gateway"}))

	r := testutils.SetupTestRouter()
	r.POST("/webhooks/:gateway", HandleWebhook)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewBufferString(`{"id":"WH-1"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
