package payment

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"mindcare-server/internal/config"
)

const invoicesPath = "/payments/invoices"

// secretKeyHeader is the authentication header the gateway expects.
const secretKeyHeader = "irembopay-secretKey"

// ErrNotConfigured is returned when no gateway secret key is configured.
var ErrNotConfigured = errors.New("irembopay: secret key not configured")

// ErrMissingPaymentLink is returned when the gateway reply carries no
// checkout URL. The field has already moved once between provider revisions,
// so its absence is validated explicitly rather than dereferenced blindly.
var ErrMissingPaymentLink = errors.New("irembopay: payment link missing from gateway response")

// APIError carries a non-2xx gateway reply. The raw body is preserved
// verbatim so callers can relay it; provider error codes are not classified.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("irembopay: gateway returned status %d: %s", e.StatusCode, e.Body)
}

// Customer identifies the paying patient on an invoice.
type Customer struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name"`
}

// PaymentItem is a single invoice line. UnitAmount is in whole RWF; the
// gateway rejects cent-scaled amounts.
type PaymentItem struct {
	UnitAmount int64  `json:"unitAmount"`
	Quantity   int    `json:"quantity"`
	Code       string `json:"code"`
}

// InvoiceRequest is the invoice-creation payload.
type InvoiceRequest struct {
	TransactionID            string        `json:"transactionId"`
	PaymentAccountIdentifier string        `json:"paymentAccountIdentifier"`
	Customer                 Customer      `json:"customer"`
	PaymentItems             []PaymentItem `json:"paymentItems"`
	Description              string        `json:"description"`
	ExpiryAt                 string        `json:"expiryAt"`
	Language                 string        `json:"language"`
}

// invoiceResponse mirrors the gateway reply. Only the fields we consume are
// declared; the checkout URL lives under data.paymentLinkUrl.
type invoiceResponse struct {
	Success bool `json:"success"`
	Data    struct {
		InvoiceNumber  string `json:"invoiceNumber"`
		PaymentLinkURL string `json:"paymentLinkUrl"`
	} `json:"data"`
}

// Invoice is the outcome of a successful invoice creation.
type Invoice struct {
	TransactionID  string
	InvoiceNumber  string
	PaymentLinkURL string
	ExpiryAt       time.Time
}

// Client talks to the IremboPay invoice API.
type Client struct {
	baseURL        string
	secretKey      string
	paymentAccount string
	productCode    string
	language       string
	invoiceExpiry  time.Duration
	httpClient     *http.Client
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.IremboPayConfig) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		secretKey:      cfg.SecretKey,
		paymentAccount: cfg.PaymentAccount,
		productCode:    cfg.ProductCode,
		language:       cfg.Language,
		invoiceExpiry:  time.Duration(cfg.InvoiceExpiryHours) * time.Hour,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether a secret key is present.
func (c *Client) Configured() bool {
	return c.secretKey != ""
}

// CreateInvoice requests a hosted-checkout invoice for a consultation.
// A fresh transaction ID is generated per call; resubmitting the same
// booking after a failure creates a new transaction with no deduplication.
func (c *Client) CreateInvoice(ctx context.Context, customer Customer, amount int64, durationMinutes int) (*Invoice, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	transactionID := NewTransactionID()
	expiryAt := time.Now().Add(c.invoiceExpiry).UTC()

	reqBody := InvoiceRequest{
		TransactionID:            transactionID,
		PaymentAccountIdentifier: c.paymentAccount,
		Customer:                 customer,
		PaymentItems: []PaymentItem{
			{
				UnitAmount: amount,
				Quantity:   1,
				Code:       c.productCode,
			},
		},
		Description: fmt.Sprintf("Therapy consultation - %d minutes", durationMinutes),
		ExpiryAt:    expiryAt.Format(time.RFC3339),
		Language:    c.language,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("irembopay: failed to encode invoice request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+invoicesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("irembopay: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(secretKeyHeader, c.secretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("irembopay: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("irembopay: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed invoiceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("irembopay: failed to decode response: %w", err)
	}

	if parsed.Data.PaymentLinkURL == "" {
		return nil, ErrMissingPaymentLink
	}

	return &Invoice{
		TransactionID:  transactionID,
		InvoiceNumber:  parsed.Data.InvoiceNumber,
		PaymentLinkURL: parsed.Data.PaymentLinkURL,
		ExpiryAt:       expiryAt,
	}, nil
}

const transactionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewTransactionID generates a gateway transaction reference of the form
// TST-<unix-millis>-<9 alphanumerics>. IDs are unique per call, never reused.
func NewTransactionID() string {
	suffix := make([]byte, 9)
	max := big.NewInt(int64(len(transactionIDAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the platform source is broken;
			// fall back to a time-derived index rather than panicking.
			n = big.NewInt(time.Now().UnixNano() % int64(len(transactionIDAlphabet)))
		}
		suffix[i] = transactionIDAlphabet[n.Int64()]
	}
	return fmt.Sprintf("TST-%d-%s", time.Now().UnixMilli(), suffix)
}
