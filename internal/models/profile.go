package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// WorkerProfile holds the public CV of a worker.
type WorkerProfile struct {
	BaseModel
	UserID              uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	User                *User          `json:"user,omitempty"`
	Phone               string         `json:"phone"`
	Address             string         `json:"address"`
	City                string         `json:"city"`
	State               string         `json:"state"`
	Country             string         `json:"country"`
	ZipCode             string         `json:"zip_code"`
	Nationality         string         `json:"nationality"`
	Bio                 string         `json:"bio"`
	HourlyRate          *string        `gorm:"type:numeric(7,2)" json:"hourly_rate"`
	Experience          string         `json:"experience"`
	Services            pq.StringArray `gorm:"type:text[]" json:"services"`
	Availability        pq.StringArray `gorm:"type:text[]" json:"availability"`
	Languages           pq.StringArray `gorm:"type:text[]" json:"languages"`
	HasTransportation   bool           `json:"has_transportation"`
	HasReferences       bool           `json:"has_references"`
	IsBackgroundChecked bool           `json:"is_background_checked"`
}

type EmployerProfile struct {
	BaseModel
	UserID      uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	CompanyName string    `json:"company_name"`
}

type AgencyProfile struct {
	BaseModel
	UserID             uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	AgencyName         string    `json:"agency_name"`
	ApprovalNumber     string    `json:"approval_number"`
	ContactInformation string    `json:"contact_information"`
}

type GovernmentProfile struct {
	BaseModel
	UserID              uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	AuthorityName       string    `json:"authority_name"`
	CredentialReference string    `json:"credential_reference"`
}

type SupportProviderProfile struct {
	BaseModel
	UserID            uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	BusinessName      string         `json:"business_name"`
	ServiceCategories pq.StringArray `gorm:"type:text[]" json:"service_categories"`
	Description       string         `json:"description"`
	ContactPhone      string         `json:"contact_phone"`
	City              string         `json:"city"`
}
