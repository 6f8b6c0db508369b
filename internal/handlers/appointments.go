package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mindcare-server/internal/middleware"
	"mindcare-server/internal/models"
	"mindcare-server/internal/payment"
	"mindcare-server/internal/utils"
)

// AppointmentHandler handles the booking flow and appointment lifecycle.
type AppointmentHandler struct {
	DB       *gorm.DB
	Payments *payment.Client
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, payments *payment.Client) *AppointmentHandler {
	return &AppointmentHandler{DB: db, Payments: payments}
}

// BookAppointmentRequest represents the booking form submission.
type BookAppointmentRequest struct {
	DoctorID        string `json:"doctorId" binding:"required,uuid"`
	AppointmentDate string `json:"appointmentDate" binding:"required"` // YYYY-MM-DD
	AppointmentTime string `json:"appointmentTime" binding:"required"` // HH:MM
	DurationMinutes int    `json:"durationMinutes"`
	Notes           string `json:"notes"`
}

// BookAppointmentResponse pairs the provisional appointment with the
// checkout link the patient must follow.
type BookAppointmentResponse struct {
	Appointment    models.Appointment `json:"appointment"`
	PaymentLinkURL string             `json:"paymentLinkUrl"`
	TransactionID  string             `json:"transactionId"`
	ExpiryAt       time.Time          `json:"expiryAt"`
}

// BookAppointment handles the patient booking flow. Ordering is fixed: the
// appointment row is created first in a provisional pending state so the
// payment references a stable record, then the invoice is requested, and
// confirmation happens only through the payment callback. A failed
// initiation leaves the row awaiting payment; nothing is rolled back.
func (h *AppointmentHandler) BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "Patient not authenticated")
		return
	}

	startTime, err := time.ParseInLocation("2006-01-02T15:04", req.AppointmentDate+"T"+req.AppointmentTime, time.Local)
	if err != nil {
		utils.BadRequest(c, "Invalid appointment date or time")
		return
	}
	if startTime.Before(time.Now()) {
		utils.BadRequest(c, "Appointment date must be in the future.")
		return
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = 60
	}
	if !models.ValidDuration(duration) {
		utils.BadRequest(c, "Session duration must be 30, 60 or 90 minutes")
		return
	}

	// Only approved doctors are bookable
	var doctor models.DoctorProfile
	if err := h.DB.Preload("User").Where("id = ? AND is_approved = ?", req.DoctorID, true).First(&doctor).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Doctor not found or not yet approved")
		} else {
			utils.InternalServerError(c, "Database error verifying doctor: "+err.Error())
		}
		return
	}

	var patient models.User
	if err := h.DB.First(&patient, "id = ?", patientID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Patient profile not found")
		} else {
			utils.InternalServerError(c, "Database error verifying patient: "+err.Error())
		}
		return
	}

	appointment := models.Appointment{
		PatientID:       patientID,
		DoctorID:        doctor.UserID,
		StartTime:       startTime,
		DurationMinutes: duration,
		// Authoritative price, computed from the stored rate. The client's
		// displayed total is a hint and is never read.
		TotalAmount:   models.ConsultationFee(doctor.HourlyRate, duration),
		Notes:         req.Notes,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
	}

	if conflict, err := h.hasOverlap(&appointment); err != nil {
		utils.InternalServerError(c, "Database error checking availability: "+err.Error())
		return
	} else if conflict {
		utils.Conflict(c, "The doctor already has an appointment in this time slot.")
		return
	}

	if err := h.DB.Create(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to create appointment: "+err.Error())
		return
	}

	customer := payment.Customer{
		Email:       patient.Email,
		PhoneNumber: patient.PhoneNumber,
		Name:        patient.FullName(),
	}
	if customer.PhoneNumber == "" {
		customer.PhoneNumber = "0780000001" // gateway requires a phone number
	}

	invoice, err := h.Payments.CreateInvoice(c.Request.Context(), customer, appointment.TotalAmount, duration)
	if err != nil {
		log.Printf("Payment initiation failed for appointment %s: %v", appointment.ID, err)
		if errors.Is(err, payment.ErrNotConfigured) {
			utils.InternalServerError(c, "Payment service configuration error")
			return
		}
		utils.InternalServerError(c, "Failed to create payment. The appointment is saved and awaiting payment; please try again.")
		return
	}

	appointment.PaymentID = invoice.TransactionID
	if err := h.DB.Model(&appointment).Update("payment_id", invoice.TransactionID).Error; err != nil {
		// The invoice already exists at the gateway; keep going and let the
		// callback reconcile by transaction ID.
		log.Printf("Failed to store payment reference on appointment %s: %v", appointment.ID, err)
	}

	transaction := models.PaymentTransaction{
		TransactionID:  invoice.TransactionID,
		AppointmentID:  appointment.ID,
		Amount:         appointment.TotalAmount,
		Status:         models.TransactionInitiated,
		PaymentLinkURL: invoice.PaymentLinkURL,
		ExpiresAt:      invoice.ExpiryAt,
	}
	if err := h.DB.Create(&transaction).Error; err != nil {
		log.Printf("Failed to record payment transaction %s: %v", invoice.TransactionID, err)
	}

	utils.Created(c, "Appointment booked. Complete the payment to confirm it.", BookAppointmentResponse{
		Appointment:    appointment,
		PaymentLinkURL: invoice.PaymentLinkURL,
		TransactionID:  invoice.TransactionID,
		ExpiryAt:       invoice.ExpiryAt,
	})
}

// hasOverlap reports whether the doctor already has a non-cancelled
// appointment intersecting the requested window. The check and the insert
// that follows it are separate statements, so two bookings racing for the
// same slot can both pass. TODO: add a unique index on
// (doctor_id, start_time) once the migration story settles.
func (h *AppointmentHandler) hasOverlap(appointment *models.Appointment) (bool, error) {
	maxSession := time.Duration(models.AllowedDurations[len(models.AllowedDurations)-1]) * time.Minute

	var candidates []models.Appointment
	err := h.DB.
		Where("doctor_id = ? AND status <> ?", appointment.DoctorID, models.StatusCancelled).
		Where("start_time > ? AND start_time < ?", appointment.StartTime.Add(-maxSession), appointment.EndTime()).
		Find(&candidates).Error
	if err != nil {
		return false, err
	}

	for i := range candidates {
		if appointment.Overlaps(&candidates[i]) {
			return true, nil
		}
	}
	return false, nil
}

// GetAppointmentsForUser handles fetching appointments for the logged-in user.
// Patients see their own bookings, doctors their schedule, admins everything.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	role, _ := middleware.GetUserRoleFromContext(c)

	var appointments []models.Appointment
	query := h.DB.Preload("Patient").Preload("Doctor").Order("start_time asc")

	var err error
	switch role {
	case models.RolePatient:
		err = query.Where("patient_id = ?", userID).Find(&appointments).Error
	case models.RoleDoctor:
		err = query.Where("doctor_id = ?", userID).Find(&appointments).Error
	case models.RoleAdmin:
		err = query.Find(&appointments).Error
	default:
		utils.Forbidden(c, "User role not permitted to view appointments")
		return
	}

	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by the involved patient, the involved doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointmentID := c.Param("id")

	var appointment models.Appointment
	if err := h.DB.Preload("Patient").Preload("Doctor").First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)

	isPatientInvolved := userID == appointment.PatientID
	isDoctorInvolved := userID == appointment.DoctorID

	if role != models.RoleAdmin && !isPatientInvolved && !isDoctorInvolved {
		utils.Forbidden(c, "You are not authorized to view this appointment")
		return
	}

	utils.Success(c, "Appointment fetched successfully", appointment)
}

// UpdateAppointmentStatusRequest represents the request body for updating an
// appointment's status.
type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required,oneof=pending confirmed cancelled completed"`
	Notes  string                   `json:"notes"`
}

// UpdateAppointmentStatus handles appointment status transitions. Doctors
// manage their own schedule, admins manage everything, patients may only
// cancel their own pending or confirmed bookings.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	appointmentID := c.Param("id")

	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)

	canUpdate := false
	switch {
	case role == models.RoleAdmin:
		canUpdate = true
	case role == models.RoleDoctor && userID == appointment.DoctorID:
		canUpdate = true
	case role == models.RolePatient && userID == appointment.PatientID:
		if req.Status != models.StatusCancelled {
			utils.Forbidden(c, "Patients can only cancel appointments.")
			return
		}
		if appointment.Status == models.StatusPending || appointment.Status == models.StatusConfirmed {
			canUpdate = true
		}
	}

	if !canUpdate {
		utils.Forbidden(c, "You are not authorized to update this appointment's status or perform this status transition.")
		return
	}

	appointment.Status = req.Status
	if req.Notes != "" {
		appointment.Notes = req.Notes
	}

	if err := h.DB.Save(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to update appointment status: "+err.Error())
		return
	}

	utils.Success(c, "Appointment status updated successfully", appointment)
}
