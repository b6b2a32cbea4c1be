package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/journal"
	"rollcall/internal/report"
)

// getRecord returns one attendance record with its comment trail.
func (h *Handler) getRecord(c *gin.Context) {
	rec, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type commentRequest struct {
	Text string `json:"text"`
}

// appendComment adds an admin comment to a record and returns the full
// updated trail.
func (h *Handler) appendComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	admin := currentUser(c)
	recordID := c.Param("id")

	trail, err := h.audit.Append(c.Request.Context(), recordID, admin.ID, admin.Name, req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.metrics.CommentsAppended.Inc()
	h.journal.Record(c.Request.Context(), journal.Entry{
		Kind:    journal.KindCommentAppended,
		ActorID: admin.ID,
		Subject: recordID,
	})
	c.JSON(http.StatusOK, gin.H{"record_id": recordID, "comments": trail})
}

// dailyReports returns all check-ins grouped by date.
func (h *Handler) dailyReports(c *gin.Context) {
	reports, err := h.reports.Daily(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if reports == nil {
		reports = []report.DailyReport{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// exportReport streams one day's check-ins as a CSV download. The date
// rides in a query parameter because it contains slashes.
func (h *Handler) exportReport(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter required"})
		return
	}

	out, filename, err := h.reports.ExportDay(c.Request.Context(), date)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.metrics.ExportsGenerated.Inc()
	h.journal.Record(c.Request.Context(), journal.Entry{
		Kind:    journal.KindExportGenerated,
		ActorID: currentUser(c).ID,
		Subject: date,
	})

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
}
