package domain

import "time"

// Activity entry types.
const (
	ActivityIncident = "incident"
	ActivityReport   = "report"
	ActivitySocial   = "social"
)

// SystemStats is the aggregate snapshot pushed to the dashboard channel.
type SystemStats struct {
	ActiveIncidents   int `json:"active_incidents" db:"active_incidents"`
	TodayReports      int `json:"today_reports" db:"today_reports"`
	SocialMentions    int `json:"social_mentions" db:"social_mentions"`
	CriticalIncidents int `json:"critical_incidents" db:"critical_incidents"`
	ModerateIncidents int `json:"moderate_incidents" db:"moderate_incidents"`
}

// Activity is one entry in the recent-activity feed, drawn from incidents,
// citizen reports or relevant social posts, newest first.
type Activity struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // incident, report or social
	Title     string    `json:"title"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location,omitempty"`
}
