// Package handler exposes the attendance workflow over HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/audit"
	"rollcall/internal/dailycode"
	"rollcall/internal/directory"
	"rollcall/internal/journal"
	"rollcall/internal/media"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/registry"
	"rollcall/internal/report"
	"rollcall/internal/storage"
)

// Deps collects everything the handlers call into.
type Deps struct {
	Directory *directory.Service
	Codes     *dailycode.Service
	Registry  *registry.Service
	Audit     *audit.Service
	Reports   *report.Service
	Uploads   media.Uploader
	Journal   *journal.Publisher
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

// Handler owns the HTTP surface.
type Handler struct {
	directory *directory.Service
	codes     *dailycode.Service
	registry  *registry.Service
	audit     *audit.Service
	reports   *report.Service
	uploads   media.Uploader
	journal   *journal.Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// New creates the handler.
func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		directory: d.Directory,
		codes:     d.Codes,
		registry:  d.Registry,
		audit:     d.Audit,
		reports:   d.Reports,
		uploads:   d.Uploads,
		journal:   d.Journal,
		metrics:   d.Metrics,
		log:       log,
	}
}

// Routes registers the API on r.
func (h *Handler) Routes(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/login", h.login)

	member := api.Group("", h.requireRole(model.RoleMember))
	member.POST("/code/validate", h.validateCode)
	member.POST("/checkins", h.submitCheckin)
	member.POST("/photos", h.uploadPhoto)

	user := api.Group("", h.requireUser())
	user.GET("/checkins", h.listCheckins)
	user.POST("/users/password", h.changePassword)

	admin := api.Group("", h.requireRole(model.RoleAdmin))
	admin.GET("/code", h.todayCode)
	admin.GET("/users", h.listUsers)
	admin.GET("/users/:id", h.getUser)
	admin.POST("/users", h.provisionUser)
	admin.POST("/users/import", h.importUsers)
	admin.DELETE("/users/:id", h.removeUser)
	admin.GET("/records/:id", h.getRecord)
	admin.POST("/records/:id/comments", h.appendComment)
	admin.GET("/reports", h.dailyReports)
	admin.GET("/reports/export", h.exportReport)
}

// fail maps service errors onto HTTP statuses. Every failure kind keeps a
// distinct message so clients can tell them apart.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, directory.ErrInvalidCredentials),
		errors.Is(err, dailycode.ErrCodeMismatch),
		errors.Is(err, registry.ErrPassInvalid):
		status = http.StatusUnauthorized
	case errors.Is(err, directory.ErrWrongOldPassword):
		status = http.StatusForbidden
	case errors.Is(err, directory.ErrDuplicateID):
		status = http.StatusConflict
	case errors.Is(err, directory.ErrUserNotFound),
		errors.Is(err, registry.ErrRecordNotFound),
		errors.Is(err, audit.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrIncompleteSubmission),
		errors.Is(err, directory.ErrPasswordTooShort),
		errors.Is(err, directory.ErrConfirmMismatch),
		errors.Is(err, directory.ErrMissingField),
		errors.Is(err, audit.ErrEmptyComment):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrStore):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		h.log.Error("request failed", "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
