package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rollcall/internal/journal"
	"rollcall/internal/media"
	"rollcall/internal/model"
	"rollcall/internal/registry"
)

// todayCode hands the admin today's code, creating it on first access.
func (h *Handler) todayCode(c *gin.Context) {
	tok, err := h.codes.TodayCode(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.CodeRequests.Inc()
	c.JSON(http.StatusOK, gin.H{"date": tok.Date, "code": tok.Code})
}

type validateRequest struct {
	Code string `json:"code" binding:"required"`
}

// validateCode exchanges today's code for a gate pass that unlocks
// check-in submission until midnight.
func (h *Handler) validateCode(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pass, err := h.codes.Validate(c.Request.Context(), req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.metrics.CodesValidated.Inc()
	h.journal.Record(c.Request.Context(), journal.Entry{
		Kind:    journal.KindCodeValidated,
		ActorID: currentUser(c).ID,
		Subject: h.codes.Today(),
	})
	c.JSON(http.StatusOK, gin.H{"pass": pass, "date": h.codes.Today()})
}

type checkinRequest struct {
	Position    string         `json:"position"`
	Description string         `json:"description"`
	Photo       string         `json:"photo"`
	Location    model.Location `json:"location"`
	Pass        string         `json:"pass"`
}

// submitCheckin records one attendance check-in. Field validation lives in
// the registry so rejects carry the failure kind, not a binding message.
func (h *Handler) submitCheckin(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.registry.Submit(c.Request.Context(), currentUser(c), registry.Submission{
		Position:    req.Position,
		Description: req.Description,
		Photo:       req.Photo,
		Location:    req.Location,
		Pass:        req.Pass,
	})
	if err != nil {
		h.metrics.CheckinsRejected.Inc()
		h.fail(c, err)
		return
	}

	h.metrics.CheckinsRecorded.Inc()
	h.journal.Record(c.Request.Context(), journal.Entry{
		Kind:    journal.KindCheckinRecorded,
		ActorID: rec.UserID,
		Subject: rec.ID,
		Detail:  rec.Date + " " + rec.Time,
	})
	c.JSON(http.StatusCreated, rec)
}

// listCheckins returns all records for admins and the caller's own records
// for members, newest first.
func (h *Handler) listCheckins(c *gin.Context) {
	u := currentUser(c)

	var (
		records []model.AttendanceRecord
		err     error
	)
	if u.Role == model.RoleAdmin {
		records, err = h.registry.List(c.Request.Context())
	} else {
		records, err = h.registry.ListForUser(c.Request.Context(), u.ID)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// uploadPhoto resolves a photo payload into the reference a check-in should
// carry. Accepts a JSON body with a base64 data URL, or a multipart file.
func (h *Handler) uploadPhoto(c *gin.Context) {
	var ref string
	var err error

	switch {
	case strings.Contains(c.ContentType(), "multipart/form-data"):
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		if cdn, ok := h.uploads.(*media.Cloudinary); ok {
			ref, err = cdn.UploadBytes(c.Request.Context(), data, header.Filename)
		} else {
			ref, err = h.uploads.Upload(c.Request.Context(), string(data))
		}

	default:
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"data\": \"<base64 data URL>\"}"})
			return
		}
		ref, err = h.uploads.Upload(c.Request.Context(), body.Data)
	}

	if err != nil {
		h.log.Error("photo upload failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "photo upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"photo": ref})
}
