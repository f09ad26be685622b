// Package postgres persists classified posts, incidents and citizen reports,
// and serves the aggregate dashboard reads.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/coastwatch/hazard-monitor/internal/config"
	"github.com/coastwatch/hazard-monitor/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps the Postgres connection pool. It implements both
// pipeline.BatchLoader and realtime.Storage.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db, logger: logger}, nil
}

// NewStore wraps an existing connection, used by tests.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMigrations creates the schema if it does not exist.
func (s *Store) RunMigrations(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS incidents(
  id UUID PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  hazard_type TEXT NOT NULL,
  severity TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'reported',
  latitude DOUBLE PRECISION NOT NULL,
  longitude DOUBLE PRECISION NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  reported_by TEXT NOT NULL DEFAULT '',
  is_emergency BOOLEAN NOT NULL DEFAULT FALSE,
  resolved_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
CREATE INDEX IF NOT EXISTS idx_incidents_severity ON incidents(severity);
CREATE INDEX IF NOT EXISTS idx_incidents_created ON incidents(created_at);

CREATE TABLE IF NOT EXISTS citizen_reports(
  id UUID PRIMARY KEY,
  incident_id UUID,
  reporter_id TEXT NOT NULL DEFAULT '',
  hazard_type TEXT NOT NULL,
  severity TEXT NOT NULL,
  description TEXT NOT NULL,
  latitude DOUBLE PRECISION NOT NULL,
  longitude DOUBLE PRECISION NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  contact_phone TEXT NOT NULL DEFAULT '',
  contact_email TEXT NOT NULL DEFAULT '',
  is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
  is_verified BOOLEAN NOT NULL DEFAULT FALSE,
  verified_by TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reports_created ON citizen_reports(created_at);
CREATE INDEX IF NOT EXISTS idx_reports_verified ON citizen_reports(is_verified);

CREATE TABLE IF NOT EXISTS social_media_posts(
  id TEXT PRIMARY KEY,
  platform TEXT NOT NULL,
  post_id TEXT NOT NULL DEFAULT '',
  username TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL,
  sentiment TEXT NOT NULL DEFAULT '',
  hazard_type TEXT NOT NULL DEFAULT '',
  severity TEXT NOT NULL DEFAULT '',
  confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
  latitude DOUBLE PRECISION,
  longitude DOUBLE PRECISION,
  location TEXT NOT NULL DEFAULT '',
  keywords TEXT[] NOT NULL DEFAULT '{}',
  engagement_score INTEGER NOT NULL DEFAULT 0,
  is_relevant BOOLEAN NOT NULL DEFAULT FALSE,
  posted_at TIMESTAMPTZ,
  processed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_relevant ON social_media_posts(is_relevant);
CREATE INDEX IF NOT EXISTS idx_posts_processed ON social_media_posts(processed_at);
CREATE INDEX IF NOT EXISTS idx_posts_hazard ON social_media_posts(hazard_type);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// socialPostRow maps the social_media_posts table. The domain struct stays
// free of driver types like pq.StringArray.
type socialPostRow struct {
	ID              string          `db:"id"`
	Platform        string          `db:"platform"`
	PostID          string          `db:"post_id"`
	Username        string          `db:"username"`
	Content         string          `db:"content"`
	Sentiment       string          `db:"sentiment"`
	HazardType      string          `db:"hazard_type"`
	Severity        string          `db:"severity"`
	Confidence      float64         `db:"confidence"`
	Latitude        sql.NullFloat64 `db:"latitude"`
	Longitude       sql.NullFloat64 `db:"longitude"`
	Location        string          `db:"location"`
	Keywords        pq.StringArray  `db:"keywords"`
	EngagementScore int             `db:"engagement_score"`
	IsRelevant      bool            `db:"is_relevant"`
	PostedAt        sql.NullTime    `db:"posted_at"`
	ProcessedAt     time.Time       `db:"processed_at"`
}

func toPostRow(p domain.SocialMediaPost) socialPostRow {
	row := socialPostRow{
		ID:              p.ID,
		Platform:        p.Platform,
		PostID:          p.PostID,
		Username:        p.Username,
		Content:         p.Content,
		Sentiment:       p.Sentiment,
		HazardType:      p.HazardType,
		Severity:        p.Severity,
		Confidence:      p.Confidence,
		Location:        p.Location,
		Keywords:        pq.StringArray(p.Keywords),
		EngagementScore: domain.EngagementScore(p.Engagement),
		IsRelevant:      p.IsRelevant,
		ProcessedAt:     p.ProcessedAt,
	}
	if p.Geo != nil {
		row.Latitude = sql.NullFloat64{Float64: p.Geo.Lat, Valid: true}
		row.Longitude = sql.NullFloat64{Float64: p.Geo.Lon, Valid: true}
	}
	if !p.PostedAt.IsZero() {
		row.PostedAt = sql.NullTime{Time: p.PostedAt, Valid: true}
	}
	return row
}

func (r socialPostRow) toDomain() domain.SocialMediaPost {
	p := domain.SocialMediaPost{
		ID:          r.ID,
		Platform:    r.Platform,
		PostID:      r.PostID,
		Username:    r.Username,
		Content:     r.Content,
		Sentiment:   r.Sentiment,
		HazardType:  r.HazardType,
		Severity:    r.Severity,
		Confidence:  r.Confidence,
		Location:    r.Location,
		Keywords:    []string(r.Keywords),
		IsRelevant:  r.IsRelevant,
		ProcessedAt: r.ProcessedAt,
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		p.Geo = &domain.Geo{Lat: r.Latitude.Float64, Lon: r.Longitude.Float64}
	}
	if r.PostedAt.Valid {
		p.PostedAt = r.PostedAt.Time
	}
	return p
}

// LoadBatch upserts a batch of classified posts in one transaction.
// Deterministic IDs make replays a no-op via ON CONFLICT DO NOTHING.
func (s *Store) LoadBatch(ctx context.Context, posts []domain.SocialMediaPost) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO social_media_posts
  (id, platform, post_id, username, content, sentiment, hazard_type, severity,
   confidence, latitude, longitude, location, keywords, engagement_score,
   is_relevant, posted_at, processed_at)
VALUES
  (:id, :platform, :post_id, :username, :content, :sentiment, :hazard_type, :severity,
   :confidence, :latitude, :longitude, :location, :keywords, :engagement_score,
   :is_relevant, :posted_at, :processed_at)
ON CONFLICT (id) DO NOTHING`

	for _, post := range posts {
		if _, err := tx.NamedExecContext(ctx, stmt, toPostRow(post)); err != nil {
			return fmt.Errorf("insert post %s: %w", post.ID, err)
		}
	}

	return tx.Commit()
}

// SocialPostFilter narrows ListSocialPosts.
type SocialPostFilter struct {
	RelevantOnly bool
	HazardType   string
	Limit        int
}

// ListSocialPosts returns classified posts, newest first.
func (s *Store) ListSocialPosts(ctx context.Context, f SocialPostFilter) ([]domain.SocialMediaPost, error) {
	limit := clampLimit(f.Limit, 50)

	query := `
SELECT id, platform, post_id, username, content, sentiment, hazard_type, severity,
       confidence, latitude, longitude, location, keywords, engagement_score,
       is_relevant, posted_at, processed_at
FROM social_media_posts
WHERE 1=1`
	args := []any{}
	if f.RelevantOnly {
		query += " AND is_relevant"
	}
	if f.HazardType != "" {
		args = append(args, f.HazardType)
		query += fmt.Sprintf(" AND hazard_type = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY processed_at DESC LIMIT $%d", len(args))

	var rows []socialPostRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	posts := make([]domain.SocialMediaPost, len(rows))
	for i, r := range rows {
		posts[i] = r.toDomain()
	}
	return posts, nil
}

// CreateIncident inserts a new incident, assigning its ID and timestamps.
func (s *Store) CreateIncident(ctx context.Context, inc *domain.Incident) error {
	inc.ID = uuid.New().String()
	if inc.Status == "" {
		inc.Status = domain.StatusReported
	}
	now := domain.Now().UTC()
	inc.CreatedAt = now
	inc.UpdatedAt = now

	const stmt = `
INSERT INTO incidents
  (id, title, description, hazard_type, severity, status, latitude, longitude,
   location, reported_by, is_emergency, created_at, updated_at)
VALUES
  (:id, :title, :description, :hazard_type, :severity, :status, :latitude, :longitude,
   :location, :reported_by, :is_emergency, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, stmt, inc); err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// GetIncident fetches one incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (domain.Incident, error) {
	var inc domain.Incident
	err := s.db.GetContext(ctx, &inc, `SELECT * FROM incidents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Incident{}, ErrNotFound
	}
	if err != nil {
		return domain.Incident{}, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

// IncidentFilter narrows ListIncidents.
type IncidentFilter struct {
	Status     string
	HazardType string
	Severity   string
	Limit      int
}

// ListIncidents returns incidents matching the filter, newest first.
func (s *Store) ListIncidents(ctx context.Context, f IncidentFilter) ([]domain.Incident, error) {
	limit := clampLimit(f.Limit, 50)

	query := `SELECT * FROM incidents WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.HazardType != "" {
		args = append(args, f.HazardType)
		query += fmt.Sprintf(" AND hazard_type = $%d", len(args))
	}
	if f.Severity != "" {
		args = append(args, f.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	incidents := []domain.Incident{}
	if err := s.db.SelectContext(ctx, &incidents, query, args...); err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return incidents, nil
}

// UpdateIncidentStatus moves an incident to a new status, stamping resolved_at
// when it reaches a terminal state.
func (s *Store) UpdateIncidentStatus(ctx context.Context, id, status string) (domain.Incident, error) {
	now := domain.Now().UTC()
	var resolvedAt *time.Time
	if status == domain.StatusResolved || status == domain.StatusFalseAlarm {
		resolvedAt = &now
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE incidents SET status = $1, resolved_at = $2, updated_at = $3 WHERE id = $4`,
		status, resolvedAt, now, id)
	if err != nil {
		return domain.Incident{}, fmt.Errorf("update incident status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Incident{}, ErrNotFound
	}
	return s.GetIncident(ctx, id)
}

// CreateReport inserts a citizen report, assigning its ID and timestamps.
func (s *Store) CreateReport(ctx context.Context, rep *domain.CitizenReport) error {
	rep.ID = uuid.New().String()
	now := domain.Now().UTC()
	rep.CreatedAt = now
	rep.UpdatedAt = now

	const stmt = `
INSERT INTO citizen_reports
  (id, incident_id, reporter_id, hazard_type, severity, description, latitude,
   longitude, location, contact_phone, contact_email, is_anonymous, is_verified,
   verified_by, created_at, updated_at)
VALUES
  (:id, NULLIF(:incident_id, ''), :reporter_id, :hazard_type, :severity, :description, :latitude,
   :longitude, :location, :contact_phone, :contact_email, :is_anonymous, :is_verified,
   :verified_by, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, stmt, rep); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ListReports returns citizen reports, newest first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]domain.CitizenReport, error) {
	reports := []domain.CitizenReport{}
	err := s.db.SelectContext(ctx, &reports, `
SELECT id, COALESCE(incident_id::text, '') AS incident_id, reporter_id, hazard_type,
       severity, description, latitude, longitude, location, contact_phone,
       contact_email, is_anonymous, is_verified, verified_by, created_at, updated_at
FROM citizen_reports
ORDER BY created_at DESC
LIMIT $1`, clampLimit(limit, 50))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// VerifyReport marks a report as verified by the given analyst.
func (s *Store) VerifyReport(ctx context.Context, id, verifiedBy string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE citizen_reports SET is_verified = TRUE, verified_by = $1, updated_at = $2 WHERE id = $3`,
		verifiedBy, domain.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("verify report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSystemStats computes the aggregate counters for the dashboard snapshot.
func (s *Store) GetSystemStats(ctx context.Context) (domain.SystemStats, error) {
	var stats domain.SystemStats
	err := s.db.GetContext(ctx, &stats, `
SELECT
  (SELECT COUNT(*) FROM incidents
     WHERE status IN ('investigating', 'verified'))                 AS active_incidents,
  (SELECT COUNT(*) FROM citizen_reports
     WHERE created_at >= date_trunc('day', now()))                  AS today_reports,
  (SELECT COUNT(*) FROM social_media_posts
     WHERE is_relevant AND processed_at >= now() - interval '24 hours') AS social_mentions,
  (SELECT COUNT(*) FROM incidents
     WHERE severity = 'critical'
       AND status NOT IN ('resolved', 'false_alarm'))               AS critical_incidents,
  (SELECT COUNT(*) FROM incidents
     WHERE severity = 'moderate'
       AND status NOT IN ('resolved', 'false_alarm'))               AS moderate_incidents`)
	if err != nil {
		return domain.SystemStats{}, fmt.Errorf("system stats: %w", err)
	}
	return stats, nil
}

// GetRecentActivity merges the newest incidents, citizen reports and relevant
// social posts into a single feed.
func (s *Store) GetRecentActivity(ctx context.Context, limit int) ([]domain.Activity, error) {
	limit = clampLimit(limit, 5)

	incidents, err := s.ListIncidents(ctx, IncidentFilter{Limit: limit})
	if err != nil {
		return nil, err
	}
	reports, err := s.ListReports(ctx, limit)
	if err != nil {
		return nil, err
	}
	posts, err := s.ListSocialPosts(ctx, SocialPostFilter{RelevantOnly: true, Limit: limit})
	if err != nil {
		return nil, err
	}

	return mergeActivity(limit, incidents, reports, posts), nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 || limit > 100 {
		return fallback
	}
	return limit
}
