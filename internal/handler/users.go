package handler

import (
	"encoding/csv"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rollcall/internal/directory"
	"rollcall/internal/journal"
	"rollcall/internal/model"
)

type loginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// login checks credentials and echoes the user back. It exists so clients
// can verify a login before wiring the same credentials into later calls.
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := model.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be member or admin"})
		return
	}
	u, err := h.directory.Authenticate(c.Request.Context(), req.ID, req.Password, role)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

type provisionRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name" binding:"required"`
	Role string `json:"role"`
}

// provisionUser registers one user and returns the generated starter
// password. This response is the only place the password is ever shown.
func (h *Handler) provisionUser(c *gin.Context) {
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.directory.Provision(c.Request.Context(), req.ID, req.Name, model.Role(req.Role))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.metrics.UsersProvisioned.Inc()
	h.journal.Record(c.Request.Context(), journal.Entry{
		Kind:    journal.KindUserProvisioned,
		ActorID: currentUser(c).ID,
		Subject: u.ID,
	})
	c.JSON(http.StatusCreated, gin.H{"user": u, "initial_password": u.Password})
}

// importUsers bulk-provisions from an uploaded CSV (columns id,name[,role])
// or a JSON row list. Bad rows are skipped and reported, never fatal.
func (h *Handler) importUsers(c *gin.Context) {
	rows, err := h.readImportRows(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, skipped, err := h.directory.BulkProvision(c.Request.Context(), rows)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.metrics.UsersProvisioned.Add(float64(len(created)))
	for _, u := range created {
		h.journal.Record(c.Request.Context(), journal.Entry{
			Kind:    journal.KindUserProvisioned,
			ActorID: currentUser(c).ID,
			Subject: u.ID,
			Detail:  "bulk import",
		})
	}

	createdOut := make([]gin.H, 0, len(created))
	for _, u := range created {
		createdOut = append(createdOut, gin.H{"user": u, "initial_password": u.Password})
	}
	skippedOut := make([]gin.H, 0, len(skipped))
	for _, s := range skipped {
		skippedOut = append(skippedOut, gin.H{"id": s.Row.ID, "reason": s.Reason})
	}
	c.JSON(http.StatusOK, gin.H{"created": createdOut, "skipped": skippedOut})
}

func (h *Handler) readImportRows(c *gin.Context) ([]directory.ProvisionRow, error) {
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return parseImportCSV(file)
	}

	var body struct {
		Rows []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"rows" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, err
	}
	rows := make([]directory.ProvisionRow, 0, len(body.Rows))
	for _, r := range body.Rows {
		rows = append(rows, directory.ProvisionRow{ID: r.ID, Name: r.Name, Role: model.Role(r.Role)})
	}
	return rows, nil
}

// parseImportCSV reads id,name[,role] lines. A leading header row is
// detected by its first column and dropped.
func parseImportCSV(r io.Reader) ([]directory.ProvisionRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var rows []directory.ProvisionRow
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "id") {
			continue
		}
		row := directory.ProvisionRow{ID: strings.TrimSpace(rec[0])}
		if len(rec) > 1 {
			row.Name = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 {
			row.Role = model.Role(strings.TrimSpace(rec[2]))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// listUsers returns the roster. Passwords never serialize.
func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.directory.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// getUser returns one roster entry.
func (h *Handler) getUser(c *gin.Context) {
	u, err := h.directory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// removeUser deletes a roster entry. Attendance records the user already
// produced keep their snapshotted name.
func (h *Handler) removeUser(c *gin.Context) {
	id := c.Param("id")
	if err := h.directory.Remove(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.journal.Record(c.Request.Context(), journal.Entry{
		Kind:    journal.KindUserRemoved,
		ActorID: currentUser(c).ID,
		Subject: id,
	})
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
	Confirm     string `json:"confirm" binding:"required"`
}

// changePassword lets the authenticated caller rotate their own password.
func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u := currentUser(c)
	if err := h.directory.ChangePassword(c.Request.Context(), u.ID, req.OldPassword, req.NewPassword, req.Confirm); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}
