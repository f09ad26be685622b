package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coastwatch/hazard-monitor/internal/adapter/postgres"
	"github.com/coastwatch/hazard-monitor/internal/domain"
	"github.com/coastwatch/hazard-monitor/internal/realtime"
)

// Storage is everything the REST handlers need from the storage layer.
type Storage interface {
	GetSystemStats(ctx context.Context) (domain.SystemStats, error)
	GetRecentActivity(ctx context.Context, limit int) ([]domain.Activity, error)

	CreateIncident(ctx context.Context, inc *domain.Incident) error
	GetIncident(ctx context.Context, id string) (domain.Incident, error)
	ListIncidents(ctx context.Context, f postgres.IncidentFilter) ([]domain.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id, status string) (domain.Incident, error)

	CreateReport(ctx context.Context, rep *domain.CitizenReport) error
	ListReports(ctx context.Context, limit int) ([]domain.CitizenReport, error)
	VerifyReport(ctx context.Context, id, verifiedBy string) error

	ListSocialPosts(ctx context.Context, f postgres.SocialPostFilter) ([]domain.SocialMediaPost, error)
	LoadBatch(ctx context.Context, posts []domain.SocialMediaPost) error
}

// Handler implements the /api/v1 routes.
type Handler struct {
	storage     Storage
	broadcaster realtime.Broadcaster
	logger      *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(storage Storage, broadcaster realtime.Broadcaster, logger *slog.Logger) *Handler {
	return &Handler{
		storage:     storage,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Dashboard: GET /api/v1/dashboard?limit=5
// Combined snapshot the dashboard loads on first render, before the
// websocket pushes take over.
func (h *Handler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.storage.GetSystemStats(ctx)
	if err != nil {
		h.serverError(c, "fetch stats", err)
		return
	}

	limit := parseLimit(c.DefaultQuery("limit", "5"), 5)
	feed, err := h.storage.GetRecentActivity(ctx, limit)
	if err != nil {
		h.serverError(c, "fetch activity", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":           stats,
		"recent_activity": feed,
	})
}

// DashboardStats: GET /api/v1/dashboard/stats
func (h *Handler) DashboardStats(c *gin.Context) {
	stats, err := h.storage.GetSystemStats(c.Request.Context())
	if err != nil {
		h.serverError(c, "fetch stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// DashboardActivity: GET /api/v1/dashboard/activity?limit=5
func (h *Handler) DashboardActivity(c *gin.Context) {
	limit := parseLimit(c.DefaultQuery("limit", "5"), 5)
	feed, err := h.storage.GetRecentActivity(c.Request.Context(), limit)
	if err != nil {
		h.serverError(c, "fetch activity", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(feed), "limit": limit},
		"data": feed,
	})
}

type createIncidentRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	HazardType  string  `json:"hazard_type" binding:"required"`
	Severity    string  `json:"severity" binding:"required"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Location    string  `json:"location"`
	ReportedBy  string  `json:"reported_by"`
	IsEmergency bool    `json:"is_emergency"`
}

// CreateIncident: POST /api/v1/incidents
// An emergency incident is broadcast to every connected dashboard immediately.
func (h *Handler) CreateIncident(c *gin.Context) {
	var req createIncidentRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	if !domain.ValidHazardType(req.HazardType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown hazard_type: " + req.HazardType})
		return
	}
	if !domain.ValidSeverity(req.Severity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity: " + req.Severity})
		return
	}
	if !validCoordinates(req.Latitude, req.Longitude) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid latitude/longitude"})
		return
	}

	inc := domain.Incident{
		Title:       req.Title,
		Description: req.Description,
		HazardType:  req.HazardType,
		Severity:    req.Severity,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Location:    req.Location,
		ReportedBy:  req.ReportedBy,
		IsEmergency: req.IsEmergency,
	}
	if err := h.storage.CreateIncident(c.Request.Context(), &inc); err != nil {
		h.serverError(c, "create incident", err)
		return
	}

	if inc.IsEmergency {
		h.broadcaster.Broadcast(realtime.Envelope{
			Type:      "emergency_alert",
			Data:      inc,
			Timestamp: domain.Now().UnixMilli(),
		}, "")
	}

	c.JSON(http.StatusCreated, inc)
}

// GetIncident: GET /api/v1/incidents/:id
func (h *Handler) GetIncident(c *gin.Context) {
	inc, err := h.storage.GetIncident(c.Request.Context(), c.Param("id"))
	if isNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	if err != nil {
		h.serverError(c, "get incident", err)
		return
	}
	c.JSON(http.StatusOK, inc)
}

// ListIncidents: GET /api/v1/incidents?status=&hazard_type=&severity=&limit=
func (h *Handler) ListIncidents(c *gin.Context) {
	f := postgres.IncidentFilter{
		Status:     c.Query("status"),
		HazardType: c.Query("hazard_type"),
		Severity:   c.Query("severity"),
		Limit:      parseLimit(c.DefaultQuery("limit", "50"), 50),
	}
	if f.Status != "" && !domain.ValidStatus(f.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + f.Status})
		return
	}

	incidents, err := h.storage.ListIncidents(c.Request.Context(), f)
	if err != nil {
		h.serverError(c, "list incidents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(incidents), "limit": f.Limit},
		"data": incidents,
	})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateIncidentStatus: PATCH /api/v1/incidents/:id/status
func (h *Handler) UpdateIncidentStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	if !domain.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + req.Status})
		return
	}

	inc, err := h.storage.UpdateIncidentStatus(c.Request.Context(), c.Param("id"), req.Status)
	if isNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	if err != nil {
		h.serverError(c, "update incident status", err)
		return
	}
	c.JSON(http.StatusOK, inc)
}

type createReportRequest struct {
	IncidentID   string  `json:"incident_id"`
	ReporterID   string  `json:"reporter_id"`
	HazardType   string  `json:"hazard_type" binding:"required"`
	Severity     string  `json:"severity" binding:"required"`
	Description  string  `json:"description" binding:"required"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Location     string  `json:"location"`
	ContactPhone string  `json:"contact_phone"`
	ContactEmail string  `json:"contact_email"`
	IsAnonymous  bool    `json:"is_anonymous"`
}

// CreateReport: POST /api/v1/reports
func (h *Handler) CreateReport(c *gin.Context) {
	var req createReportRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	if !domain.ValidHazardType(req.HazardType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown hazard_type: " + req.HazardType})
		return
	}
	if !domain.ValidSeverity(req.Severity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity: " + req.Severity})
		return
	}
	if !validCoordinates(req.Latitude, req.Longitude) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid latitude/longitude"})
		return
	}

	rep := domain.CitizenReport{
		IncidentID:   req.IncidentID,
		ReporterID:   req.ReporterID,
		HazardType:   req.HazardType,
		Severity:     req.Severity,
		Description:  req.Description,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Location:     req.Location,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		IsAnonymous:  req.IsAnonymous,
	}
	if rep.IsAnonymous {
		rep.ReporterID = ""
		rep.ContactPhone = ""
		rep.ContactEmail = ""
	}

	if err := h.storage.CreateReport(c.Request.Context(), &rep); err != nil {
		h.serverError(c, "create report", err)
		return
	}
	c.JSON(http.StatusCreated, rep)
}

// ListReports: GET /api/v1/reports?limit=50
func (h *Handler) ListReports(c *gin.Context) {
	limit := parseLimit(c.DefaultQuery("limit", "50"), 50)
	reports, err := h.storage.ListReports(c.Request.Context(), limit)
	if err != nil {
		h.serverError(c, "list reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(reports), "limit": limit},
		"data": reports,
	})
}

type verifyReportRequest struct {
	VerifiedBy string `json:"verified_by" binding:"required"`
}

// VerifyReport: POST /api/v1/reports/:id/verify
func (h *Handler) VerifyReport(c *gin.Context) {
	var req verifyReportRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}

	err := h.storage.VerifyReport(c.Request.Context(), c.Param("id"), req.VerifiedBy)
	if isNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	if err != nil {
		h.serverError(c, "verify report", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// ListSocialPosts: GET /api/v1/social?relevant=true&hazard_type=&limit=
func (h *Handler) ListSocialPosts(c *gin.Context) {
	f := postgres.SocialPostFilter{
		RelevantOnly: c.DefaultQuery("relevant", "true") == "true",
		HazardType:   c.Query("hazard_type"),
		Limit:        parseLimit(c.DefaultQuery("limit", "50"), 50),
	}

	posts, err := h.storage.ListSocialPosts(c.Request.Context(), f)
	if err != nil {
		h.serverError(c, "list social posts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(posts), "limit": f.Limit},
		"data": posts,
	})
}

type createSocialPostRequest struct {
	Platform   string             `json:"platform" binding:"required"`
	PostID     string             `json:"post_id"`
	Username   string             `json:"username"`
	Content    string             `json:"content" binding:"required"`
	PostedAt   string             `json:"posted_at"`
	Engagement *domain.Engagement `json:"engagement"`
}

// CreateSocialPost: POST /api/v1/social
// A manually submitted post goes through the same parse-and-classify path as
// Kafka ingest before it is persisted. The deterministic ID makes a
// resubmission an upsert no-op.
func (h *Handler) CreateSocialPost(c *gin.Context) {
	var req createSocialPostRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}

	payload, err := json.Marshal(domain.RawPostRecord{
		Platform:   req.Platform,
		PostID:     req.PostID,
		Username:   req.Username,
		Content:    req.Content,
		PostedAt:   req.PostedAt,
		Engagement: req.Engagement,
	})
	if err != nil {
		h.serverError(c, "encode post", err)
		return
	}

	post, err := domain.ParseRawPost(domain.RawEvent{
		Key:       []byte(req.PostID),
		Value:     payload,
		Timestamp: domain.Now(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	post = domain.EnrichPost(post)

	if err := h.storage.LoadBatch(c.Request.Context(), []domain.SocialMediaPost{post}); err != nil {
		h.serverError(c, "store social post", err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

type classifyRequest struct {
	Content string `json:"content" binding:"required"`
}

// ClassifyText: POST /api/v1/social/classify
// Runs the keyword classifier on arbitrary text without persisting anything,
// used by the dashboard's triage preview.
func (h *Handler) ClassifyText(c *gin.Context) {
	var req classifyRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, domain.Classify(req.Content))
}

func (h *Handler) serverError(c *gin.Context, op string, err error) {
	h.logger.Error(op+" failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func validCoordinates(lat, lon float64) bool {
	return math.Abs(lat) <= 90 && math.Abs(lon) <= 180
}

// parseLimit ensures a sane integer limit, with bounds.
func parseLimit(s string, fallback int) int {
	l, err := strconv.Atoi(s)
	if err != nil || l <= 0 {
		return fallback
	}
	if l > 100 {
		return 100
	}
	return l
}
