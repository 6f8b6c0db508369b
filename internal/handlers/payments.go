package handlers

import (
	"errors"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mindcare-server/internal/models"
	"mindcare-server/internal/payment"
	"mindcare-server/internal/utils"
)

// callbackTokenHeader carries the shared secret on payment notifications.
const callbackTokenHeader = "X-Callback-Token"

// PaymentHandler exposes the payment-initiation endpoint and the gateway
// callback.
type PaymentHandler struct {
	DB             *gorm.DB
	Payments       *payment.Client
	CallbackSecret string
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(db *gorm.DB, payments *payment.Client, callbackSecret string) *PaymentHandler {
	return &PaymentHandler{DB: db, Payments: payments, CallbackSecret: callbackSecret}
}

// PaymentAppointmentData is the appointment description sent by the booking
// client.
type PaymentAppointmentData struct {
	PatientID       string  `json:"patient_id"`
	DoctorID        string  `json:"doctor_id"`
	AppointmentDate string  `json:"appointment_date"`
	DurationMinutes int     `json:"duration_minutes"`
	TotalAmount     float64 `json:"total_amount"`
	Notes           string  `json:"notes"`
}

// PaymentUserProfile is the paying customer's contact information.
type PaymentUserProfile struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// CreatePaymentRequest is the payment-initiation request body.
type CreatePaymentRequest struct {
	AppointmentData *PaymentAppointmentData `json:"appointmentData"`
	UserProfile     *PaymentUserProfile     `json:"userProfile"`
}

// CreatePaymentResponse is the success shape of the payment-initiation
// endpoint. This endpoint keeps its own wire format instead of the standard
// envelope; the booking client consumes these exact keys.
type CreatePaymentResponse struct {
	Success        bool   `json:"success"`
	PaymentLinkURL string `json:"paymentLinkUrl"`
	TransactionID  string `json:"transactionId"`
	ExpiryAt       string `json:"expiryAt"`
}

// CreatePayment accepts an appointment description plus the caller's profile,
// requests a hosted-checkout invoice from the gateway and relays the checkout
// URL. Each call issues a fresh transaction ID; resubmitting the same booking
// creates a new transaction with no deduplication.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if req.AppointmentData == nil || req.UserProfile == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing appointment data or user profile"})
		return
	}

	if !h.Payments.Configured() {
		log.Printf("Payment initiation rejected: gateway secret key not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment service configuration error"})
		return
	}

	customer := payment.Customer{
		Email:       req.UserProfile.Email,
		PhoneNumber: req.UserProfile.Phone,
		Name:        req.UserProfile.FullName,
	}
	if customer.PhoneNumber == "" {
		customer.PhoneNumber = "0780000001"
	}

	// Amounts are whole RWF; never scale to cents.
	amount := int64(math.Round(req.AppointmentData.TotalAmount))

	invoice, err := h.Payments.CreateInvoice(c.Request.Context(), customer, amount, req.AppointmentData.DurationMinutes)
	if err != nil {
		var apiErr *payment.APIError
		switch {
		case errors.As(err, &apiErr):
			log.Printf("Payment gateway error (status %d): %s", apiErr.StatusCode, apiErr.Body)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Payment service error",
				"details": apiErr.Body,
			})
		case errors.Is(err, payment.ErrMissingPaymentLink):
			log.Printf("Payment gateway reply carried no checkout link")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment link not received"})
		default:
			log.Printf("Payment initiation failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	// Audit row; best-effort, the invoice already exists at the gateway.
	transaction := models.PaymentTransaction{
		TransactionID:  invoice.TransactionID,
		Amount:         amount,
		Status:         models.TransactionInitiated,
		PaymentLinkURL: invoice.PaymentLinkURL,
		ExpiresAt:      invoice.ExpiryAt,
	}
	if err := h.DB.Create(&transaction).Error; err != nil {
		log.Printf("Failed to record payment transaction %s: %v", invoice.TransactionID, err)
	}

	c.JSON(http.StatusOK, CreatePaymentResponse{
		Success:        true,
		PaymentLinkURL: invoice.PaymentLinkURL,
		TransactionID:  invoice.TransactionID,
		ExpiryAt:       invoice.ExpiryAt.Format(time.RFC3339),
	})
}

// PaymentCallbackRequest is the gateway's payment notification.
type PaymentCallbackRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
	PaymentStatus string `json:"paymentStatus" binding:"required,oneof=paid failed"`
}

// PaymentCallback resolves a transaction to paid or failed and carries the
// outcome back onto the appointment that referenced it. Replayed
// notifications are acknowledged without regressing a settled transaction.
func (h *PaymentHandler) PaymentCallback(c *gin.Context) {
	if h.CallbackSecret != "" && c.GetHeader(callbackTokenHeader) != h.CallbackSecret {
		utils.Unauthorized(c, "Invalid callback token")
		return
	}

	var req PaymentCallbackRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var transaction models.PaymentTransaction
	if err := h.DB.Where("transaction_id = ?", req.TransactionID).First(&transaction).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Unknown transaction")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if transaction.Status == models.TransactionPaid {
		utils.Success(c, "Transaction already settled", transaction)
		return
	}

	newStatus := models.TransactionFailed
	appointmentPayment := models.PaymentFailed
	appointmentStatus := models.StatusPending
	if req.PaymentStatus == "paid" {
		newStatus = models.TransactionPaid
		appointmentPayment = models.PaymentPaid
		appointmentStatus = models.StatusConfirmed
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&transaction).Update("status", newStatus).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"payment_status": appointmentPayment}
		if newStatus == models.TransactionPaid {
			updates["status"] = appointmentStatus
		}
		return tx.Model(&models.Appointment{}).
			Where("payment_id = ?", transaction.TransactionID).
			Updates(updates).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to settle transaction: "+err.Error())
		return
	}

	transaction.Status = newStatus
	utils.Success(c, "Transaction settled", transaction)
}

// GetTransactions handles fetching all payment transactions (admin).
func (h *PaymentHandler) GetTransactions(c *gin.Context) {
	var transactions []models.PaymentTransaction
	if err := h.DB.Order("created_at desc").Find(&transactions).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch transactions: "+err.Error())
		return
	}

	utils.Success(c, "Transactions fetched successfully", transactions)
}
