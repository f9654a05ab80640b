package patient

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	DOB          time.Time `json:"dob"`
	MedicalNotes *string   `json:"medicalNotes"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Notes returns the medical notes, or "" when none were recorded.
func (p *Patient) Notes() string {
	if p.MedicalNotes == nil {
		return ""
	}
	return *p.MedicalNotes
}

// Input is the body of create and update requests. Every field is a pointer
// so that an update can tell "absent" from "set to empty".
type Input struct {
	Name         *string `json:"name" validate:"omitempty,min=1"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Phone        *string `json:"phone" validate:"omitempty,min=10"`
	DOB          *string `json:"dob"`
	MedicalNotes *string `json:"medicalNotes"`
}

// Page is one page of the newest-first patient listing.
type Page struct {
	Patients   []*Patient `json:"patients"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
}
