package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-server/internal/config"
	"mindcare-server/internal/payment"
)

const validPaymentBody = `{
	"appointmentData": {
		"patient_id": "3f8a1c2d-9e4b-4a6f-8d7c-1b2e3f4a5001",
		"doctor_id": "5d7c9e2f-1a3b-4c6d-8e9f-2a4b6c8d7002",
		"appointment_date": "2026-09-14T10:00:00Z",
		"duration_minutes": 90,
		"total_amount": 18000,
		"notes": "first session"
	},
	"userProfile": {
		"full_name": "Jane Doe",
		"email": "jane@example.com",
		"phone": "0788123456"
	}
}`

func paymentGatewayConfig(baseURL, secret string) config.IremboPayConfig {
	return config.IremboPayConfig{
		BaseURL:            baseURL,
		SecretKey:          secret,
		PaymentAccount:     "TST-RWF",
		ProductCode:        "PC-aaf751b73f",
		Language:           "EN",
		InvoiceExpiryHours: 24,
	}
}

func paymentRouter(t *testing.T, gatewayURL, secret string) (*gin.Engine, sqlmock.Sqlmock) {
	return paymentRouterWithCallbackSecret(t, gatewayURL, secret, "")
}

func paymentRouterWithCallbackSecret(t *testing.T, gatewayURL, secret, callbackSecret string) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	handler := NewPaymentHandler(db, payment.NewClient(paymentGatewayConfig(gatewayURL, secret)), callbackSecret)

	router := gin.New()
	router.POST("/payments/create", handler.CreatePayment)
	router.POST("/payments/callback", handler.PaymentCallback)
	return router, mock
}

// stubGateway is a fake invoice API that always returns a checkout link.
func stubGateway(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls++
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"invoiceNumber":"880111222333","paymentLinkUrl":"https://checkout.irembopay.com/inv/880111222333"}}`))
	}))
}

func expectTransactionInsert(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `payment_transactions`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestCreatePaymentMissingData(t *testing.T) {
	router, _ := paymentRouter(t, "http://gateway.invalid", "sk")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/create", strings.NewReader(`{"userProfile":{"email":"a@b.c"}}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestCreatePaymentMissingSecret(t *testing.T) {
	router, _ := paymentRouter(t, "http://gateway.invalid", "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/create", strings.NewReader(validPaymentBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	assert.Contains(t, w.Body.String(), "configuration")
}

func TestCreatePaymentGatewayDeclined(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"message":"card declined"}`))
	}))
	defer gateway.Close()

	router, _ := paymentRouter(t, gateway.URL, "sk")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/create", strings.NewReader(validPaymentBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Provider failures are relayed as a 500 carrying the raw body
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Payment service error")
	assert.Contains(t, w.Body.String(), "card declined")
}

func TestCreatePaymentMissingLink(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"invoiceNumber":"880000000000"}}`))
	}))
	defer gateway.Close()

	router, _ := paymentRouter(t, gateway.URL, "sk")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/create", strings.NewReader(validPaymentBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Payment link not received")
}

func TestCreatePaymentSuccess(t *testing.T) {
	gateway := stubGateway(t, nil)
	defer gateway.Close()

	router, mock := paymentRouter(t, gateway.URL, "sk")
	expectTransactionInsert(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/create", strings.NewReader(validPaymentBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp CreatePaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "https://checkout.irembopay.com/inv/880111222333", resp.PaymentLinkURL)
	assert.Regexp(t, `^TST-\d+-[a-z0-9]{9}$`, resp.TransactionID)
	assert.NotEmpty(t, resp.ExpiryAt)
}

func TestCreatePaymentNotIdempotent(t *testing.T) {
	gateway := stubGateway(t, nil)
	defer gateway.Close()

	router, mock := paymentRouter(t, gateway.URL, "sk")
	expectTransactionInsert(mock)
	expectTransactionInsert(mock)

	transactionIDs := make(map[string]bool)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments/create", strings.NewReader(validPaymentBody))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp CreatePaymentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		transactionIDs[resp.TransactionID] = true
	}

	// Identical submissions yield distinct transactions; there is no
	// deduplication. Documented behavior, undesirable as it is.
	assert.Len(t, transactionIDs, 2)
}

func TestPaymentCallbackUnknownTransaction(t *testing.T) {
	router, mock := paymentRouter(t, "http://gateway.invalid", "sk")
	mock.ExpectQuery("SELECT (.+) FROM `payment_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "status"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/callback",
		strings.NewReader(`{"transactionId":"TST-000-unknown01","paymentStatus":"paid"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentCallbackSettlesPaid(t *testing.T) {
	router, mock := paymentRouter(t, "http://gateway.invalid", "sk")

	mock.ExpectQuery("SELECT (.+) FROM `payment_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "amount", "status"}).
			AddRow("txn-row-1", "TST-1757000000000-abc123def", 18000, "initiated"))

	// Settlement is one transaction: the audit row flips to paid, then the
	// appointment referencing the transaction is confirmed via payment_id.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `payment_transactions`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `appointments` SET (.+) WHERE payment_id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/callback",
		strings.NewReader(`{"transactionId":"TST-1757000000000-abc123def","paymentStatus":"paid"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"paid"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentCallbackReplayIsIdempotent(t *testing.T) {
	router, mock := paymentRouter(t, "http://gateway.invalid", "sk")

	// Already settled; the replay must be acknowledged without any UPDATE.
	// The mock has no write expectations, so an issued statement would fail.
	mock.ExpectQuery("SELECT (.+) FROM `payment_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "amount", "status"}).
			AddRow("txn-row-1", "TST-1757000000000-abc123def", 18000, "paid"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/callback",
		strings.NewReader(`{"transactionId":"TST-1757000000000-abc123def","paymentStatus":"paid"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	assert.Contains(t, w.Body.String(), "already settled")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentCallbackFailedDoesNotConfirm(t *testing.T) {
	router, mock := paymentRouter(t, "http://gateway.invalid", "sk")

	mock.ExpectQuery("SELECT (.+) FROM `payment_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "amount", "status"}).
			AddRow("txn-row-1", "TST-1757000000000-abc123def", 18000, "initiated"))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `payment_transactions`").WillReturnResult(sqlmock.NewResult(0, 1))
	// Only payment_status moves; the scheduling status stays untouched.
	mock.ExpectExec("UPDATE `appointments` SET `payment_status`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/callback",
		strings.NewReader(`{"transactionId":"TST-1757000000000-abc123def","paymentStatus":"failed"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"failed"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentCallbackRequiresToken(t *testing.T) {
	router, _ := paymentRouterWithCallbackSecret(t, "http://gateway.invalid", "sk", "cb-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/callback",
		strings.NewReader(`{"transactionId":"TST-000-abcdefghi","paymentStatus":"paid"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentCallbackAcceptsToken(t *testing.T) {
	router, mock := paymentRouterWithCallbackSecret(t, "http://gateway.invalid", "sk", "cb-secret")
	mock.ExpectQuery("SELECT (.+) FROM `payment_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "status"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/callback",
		strings.NewReader(`{"transactionId":"TST-000-abcdefghi","paymentStatus":"paid"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Callback-Token", "cb-secret")
	router.ServeHTTP(w, req)

	// Past the token check; the unknown transaction resolves normally.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentCallbackInvalidStatus(t *testing.T) {
	router, _ := paymentRouter(t, "http://gateway.invalid", "sk")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/callback",
		strings.NewReader(`{"transactionId":"TST-000-abcdefghi","paymentStatus":"maybe"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
