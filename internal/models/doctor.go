package models

// DoctorProfile extends a doctor user with practice details. Created at
// doctor sign-up with IsApproved false; only an admin flips the flag, and
// only approved doctors are offered to patients for booking.
type DoctorProfile struct {
	BaseModel
	UserID         string `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	Specialization string `gorm:"size:150" json:"specialization"`
	LicenseNumber  string `gorm:"size:100" json:"licenseNumber"`
	HourlyRate     int64  `gorm:"not null;default:12000" json:"hourlyRate"` // RWF per hour
	IsApproved     bool   `gorm:"default:false" json:"isApproved"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// DoctorListing is the view of an approved doctor shown to patients when
// choosing a therapist.
type DoctorListing struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	FullName       string `json:"fullName"`
	Specialization string `json:"specialization"`
	HourlyRate     int64  `json:"hourlyRate"`
}

// Listing builds the patient-facing view. The User relation must be loaded.
func (d *DoctorProfile) Listing() DoctorListing {
	return DoctorListing{
		ID:             d.ID,
		UserID:         d.UserID,
		FullName:       d.User.FullName(),
		Specialization: d.Specialization,
		HourlyRate:     d.HourlyRate,
	}
}
