package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/carebook/internal/auth"
	"github.com/MarcoPoloResearchLab/carebook/internal/calendar"
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"github.com/MarcoPoloResearchLab/carebook/internal/eventsync"
	"github.com/MarcoPoloResearchLab/carebook/internal/export"
	"github.com/MarcoPoloResearchLab/carebook/internal/store"
)

const (
	userIDContextKey = "carebook_user_id"
	calendarMIMEType = "text/calendar; charset=utf-8"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingCalendarView     = errors.New("calendar view dependency required")
	errMissingEventLister      = errors.New("event lister dependency required")
	errMissingUserID           = errors.New("user id dependency required")
)

// SessionValidator authenticates requests.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// CalendarView is the view state the API drives.
type CalendarView interface {
	SetSelectedDate(date string) error
	Projection() calendar.Projection
	AddEvent(ctx context.Context, input calendar.EventInput) (events.HealthEvent, error)
	ToggleCompletion(ctx context.Context, eventID string) (events.HealthEvent, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// EventLister reads the user's stored events.
type EventLister interface {
	ListAll(ctx context.Context, userID string) ([]events.HealthEvent, error)
}

// Summarizer produces agenda summaries. It is optional.
type Summarizer interface {
	Summarize(ctx context.Context, projection calendar.Projection) (string, error)
}

// Dependencies wires the HTTP API.
type Dependencies struct {
	Sessions       SessionValidator
	UserID         string
	Calendar       CalendarView
	Events         EventLister
	Summarizer     Summarizer
	AllowedOrigins []string
	Clock          func() time.Time
	Logger         *zap.Logger
}

// NewHTTPHandler builds the local API of the running session's user.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Calendar == nil {
		return nil, errMissingCalendarView
	}
	if deps.Events == nil {
		return nil, errMissingEventLister
	}
	if deps.UserID == "" {
		return nil, errMissingUserID
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		sessions:   deps.Sessions,
		userID:     deps.UserID,
		calendar:   deps.Calendar,
		events:     deps.Events,
		summarizer: deps.Summarizer,
		clock:      clock,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/calendar", handler.handleCalendar)
	protected.GET("/calendar.ics", handler.handleCalendarExport)
	protected.POST("/events", handler.handleAddEvent)
	protected.POST("/events/:id/completions/:date", handler.handleToggleCompletion)
	protected.DELETE("/events/:id", handler.handleDeleteEvent)
	protected.GET("/assistant/summary", handler.handleSummary)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

type httpHandler struct {
	sessions   SessionValidator
	userID     string
	calendar   CalendarView
	events     EventLister
	summarizer Summarizer
	clock      func() time.Time
	logger     *zap.Logger

	// cursorMu keeps a date change and the action on that date together.
	cursorMu sync.Mutex
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleCalendar(c *gin.Context) {
	h.cursorMu.Lock()
	defer h.cursorMu.Unlock()
	if date := c.Query("date"); date != "" {
		if err := h.calendar.SetSelectedDate(date); err != nil {
			h.respondError(c, "select_date", err)
			return
		}
	}
	c.JSON(http.StatusOK, h.calendar.Projection())
}

func (h *httpHandler) handleAddEvent(c *gin.Context) {
	var input calendar.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.calendar.AddEvent(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "add_event", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleToggleCompletion(c *gin.Context) {
	h.cursorMu.Lock()
	defer h.cursorMu.Unlock()
	if err := h.calendar.SetSelectedDate(c.Param("date")); err != nil {
		h.respondError(c, "toggle_completion", err)
		return
	}
	toggled, err := h.calendar.ToggleCompletion(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "toggle_completion", err)
		return
	}
	c.JSON(http.StatusOK, toggled)
}

func (h *httpHandler) handleDeleteEvent(c *gin.Context) {
	if err := h.calendar.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "delete_event", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleCalendarExport(c *gin.Context) {
	list, err := h.events.ListAll(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, "export_calendar", err)
		return
	}
	var buffer bytes.Buffer
	if _, err := export.WriteICS(&buffer, list, export.Options{Now: h.clock(), Logger: h.logger}); err != nil {
		h.respondError(c, "export_calendar", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="carebook.ics"`)
	c.Data(http.StatusOK, calendarMIMEType, buffer.Bytes())
}

func (h *httpHandler) handleSummary(c *gin.Context) {
	if h.summarizer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant_disabled"})
		return
	}
	projection := h.calendar.Projection()
	if date := c.Query("date"); date != "" {
		if !events.IsValidDate(date) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		list, err := h.events.ListAll(c.Request.Context(), c.GetString(userIDContextKey))
		if err != nil {
			h.respondError(c, "summarize", err)
			return
		}
		projection = calendar.Project(list, date)
	}

	summary, err := h.summarizer.Summarize(c.Request.Context(), projection)
	if err != nil {
		h.logger.Warn("assistant summary failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": projection.SelectedDate, "summary": summary})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if claims.UserID != h.userID {
		h.logger.Warn("session user does not own this calendar",
			zap.String("user_id", claims.UserID))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Set(userIDContextKey, claims.UserID)
	c.Next()
}

func (h *httpHandler) respondError(c *gin.Context, operation string, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("operation", operation),
			zap.String("reason", code),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, events.ErrInvalidDate):
		return http.StatusBadRequest, "invalid_date"
	case errors.Is(err, events.ErrInvalidTime):
		return http.StatusBadRequest, "invalid_time"
	case errors.Is(err, calendar.ErrMissingTitle):
		return http.StatusBadRequest, "missing_title"
	case errors.Is(err, events.ErrInvalidEventType),
		errors.Is(err, events.ErrInvalidRecurrence),
		errors.Is(err, events.ErrInvalidEventID):
		return http.StatusBadRequest, "invalid_event"
	case errors.Is(err, eventsync.ErrEventNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, eventsync.ErrForeignUser):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, store.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, eventsync.ErrStopped):
		return http.StatusServiceUnavailable, "sync_stopped"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
