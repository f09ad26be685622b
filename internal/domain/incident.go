package domain

import "time"

// Incident lifecycle statuses.
const (
	StatusReported      = "reported"
	StatusInvestigating = "investigating"
	StatusVerified      = "verified"
	StatusResolved      = "resolved"
	StatusFalseAlarm    = "false_alarm"
)

// Incident is a hazard event tracked by analysts. Incidents with status
// investigating or verified count as active in dashboard stats.
type Incident struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	HazardType  string     `json:"hazard_type" db:"hazard_type"`
	Severity    string     `json:"severity" db:"severity"`
	Status      string     `json:"status" db:"status"`
	Latitude    float64    `json:"latitude" db:"latitude"`
	Longitude   float64    `json:"longitude" db:"longitude"`
	Location    string     `json:"location" db:"location"`
	ReportedBy  string     `json:"reported_by,omitempty" db:"reported_by"`
	IsEmergency bool       `json:"is_emergency" db:"is_emergency"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// CitizenReport is a hazard observation submitted through the public dashboard.
// Reports are anonymous unless the reporter chose otherwise, and stay
// unverified until an analyst confirms them.
type CitizenReport struct {
	ID           string    `json:"id" db:"id"`
	IncidentID   string    `json:"incident_id,omitempty" db:"incident_id"`
	ReporterID   string    `json:"reporter_id,omitempty" db:"reporter_id"`
	HazardType   string    `json:"hazard_type" db:"hazard_type"`
	Severity     string    `json:"severity" db:"severity"`
	Description  string    `json:"description" db:"description"`
	Latitude     float64   `json:"latitude" db:"latitude"`
	Longitude    float64   `json:"longitude" db:"longitude"`
	Location     string    `json:"location" db:"location"`
	ContactPhone string    `json:"contact_phone,omitempty" db:"contact_phone"`
	ContactEmail string    `json:"contact_email,omitempty" db:"contact_email"`
	IsAnonymous  bool      `json:"is_anonymous" db:"is_anonymous"`
	IsVerified   bool      `json:"is_verified" db:"is_verified"`
	VerifiedBy   string    `json:"verified_by,omitempty" db:"verified_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ValidHazardType reports whether t is one of the known hazard categories.
func ValidHazardType(t string) bool {
	switch t {
	case HazardTsunami, HazardStormSurge, HazardHighWaves, HazardUnusualTides,
		HazardCoastalFlooding, HazardSwellSurge, HazardCoastalCurrent, HazardOther:
		return true
	}
	return false
}

// ValidSeverity reports whether s is one of the four severity levels.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityModerate, SeverityLow:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known incident status.
func ValidStatus(s string) bool {
	switch s {
	case StatusReported, StatusInvestigating, StatusVerified, StatusResolved, StatusFalseAlarm:
		return true
	}
	return false
}
