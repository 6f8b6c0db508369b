package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mindcare-server/internal/middleware"
	"mindcare-server/internal/models"
	"mindcare-server/internal/utils"
)

// DoctorHandler handles doctor directory and approval requests.
type DoctorHandler struct {
	DB *gorm.DB
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(db *gorm.DB) *DoctorHandler {
	return &DoctorHandler{DB: db}
}

// GetDoctors handles fetching all approved doctors. This is the directory
// the booking form reads its names, specializations and rates from, so
// unapproved doctors never appear here.
func (h *DoctorHandler) GetDoctors(c *gin.Context) {
	var profiles []models.DoctorProfile
	if err := h.DB.Preload("User").Where("is_approved = ?", true).Find(&profiles).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}

	listings := make([]models.DoctorListing, len(profiles))
	for i, profile := range profiles {
		listings[i] = profile.Listing()
	}

	utils.Success(c, "Doctors fetched successfully", listings)
}

// GetDoctorByID handles fetching a single approved doctor.
func (h *DoctorHandler) GetDoctorByID(c *gin.Context) {
	doctorID := c.Param("id")

	var profile models.DoctorProfile
	if err := h.DB.Preload("User").Where("id = ? AND is_approved = ?", doctorID, true).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	utils.Success(c, "Doctor fetched successfully", profile.Listing())
}

// UpdateDoctorProfileRequest represents the request body for a doctor
// editing their own practice details.
type UpdateDoctorProfileRequest struct {
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"licenseNumber"`
	HourlyRate     int64  `json:"hourlyRate"`
}

// UpdateOwnProfile handles a doctor updating their own profile. Approval is
// never touched here; that stays an admin-only mutation.
func (h *DoctorHandler) UpdateOwnProfile(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req UpdateDoctorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	if req.HourlyRate < 0 {
		utils.BadRequest(c, "Hourly rate cannot be negative")
		return
	}

	var profile models.DoctorProfile
	if err := h.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Doctor profile not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if req.Specialization != "" {
		profile.Specialization = req.Specialization
	}
	if req.LicenseNumber != "" {
		profile.LicenseNumber = req.LicenseNumber
	}
	if req.HourlyRate > 0 {
		profile.HourlyRate = req.HourlyRate
	}

	if err := h.DB.Save(&profile).Error; err != nil {
		utils.InternalServerError(c, "Failed to update doctor profile: "+err.Error())
		return
	}

	utils.Success(c, "Doctor profile updated successfully", profile)
}

// GetPendingDoctors handles fetching doctors awaiting approval (admin).
func (h *DoctorHandler) GetPendingDoctors(c *gin.Context) {
	var profiles []models.DoctorProfile
	if err := h.DB.Preload("User").Where("is_approved = ?", false).Find(&profiles).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch pending doctors: "+err.Error())
		return
	}

	utils.Success(c, "Pending doctors fetched successfully", profiles)
}

// SetApprovalRequest represents the request body for the admin approval action.
type SetApprovalRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// SetApproval handles approving or revoking a doctor (admin).
func (h *DoctorHandler) SetApproval(c *gin.Context) {
	doctorID := c.Param("id")

	var req SetApprovalRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var profile models.DoctorProfile
	if err := h.DB.First(&profile, "id = ?", doctorID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Doctor profile not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	profile.IsApproved = *req.Approved
	if err := h.DB.Save(&profile).Error; err != nil {
		utils.InternalServerError(c, "Failed to update approval: "+err.Error())
		return
	}

	message := "Doctor approved successfully"
	if !profile.IsApproved {
		message = "Doctor approval revoked"
	}
	utils.Success(c, message, profile)
}
