package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/audit"
	"rollcall/internal/dailycode"
	"rollcall/internal/directory"
	"rollcall/internal/gatepass"
	"rollcall/internal/journal"
	"rollcall/internal/media"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/queue"
	"rollcall/internal/registry"
	"rollcall/internal/report"
	"rollcall/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine *gin.Engine
	mem    *storage.Memory
	codes  *dailycode.Service
	queue  *queue.InMemory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mem := storage.NewMemory()
	signer := gatepass.NewSigner("test-key", "rollcall")
	codes := dailycode.New(mem, signer, time.UTC)
	q := queue.NewInMemory(64)

	h := New(Deps{
		Directory: directory.New(mem),
		Codes:     codes,
		Registry:  registry.New(mem, signer, time.UTC),
		Audit:     audit.New(mem),
		Reports:   report.New(mem),
		Uploads:   media.Passthrough{},
		Journal:   journal.NewPublisher(q, nil),
		Metrics:   metrics.New(prometheus.NewRegistry()),
	})

	engine := gin.New()
	h.Routes(engine)

	ts := &testServer{engine: engine, mem: mem, codes: codes, queue: q}
	ts.seed(t, "A001", "Root", "adminpw", model.RoleAdmin)
	ts.seed(t, "M001", "Jane", "memberpw", model.RoleMember)
	return ts
}

func (ts *testServer) seed(t *testing.T, id, name, password string, role model.Role) {
	t.Helper()
	err := ts.mem.InsertUser(context.Background(), model.User{ID: id, Name: name, Password: password, Role: role})
	require.NoError(t, err)
}

// do issues a request with optional basic auth and a JSON body.
func (ts *testServer) do(t *testing.T, method, path, user, password string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.SetBasicAuth(user, password)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	t.Run("success", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/login", "", "", gin.H{"id": "M001", "password": "memberpw", "role": "member"})
		require.Equal(t, http.StatusOK, w.Code)
		out := decode(t, w)
		user := out["user"].(map[string]any)
		assert.Equal(t, "Jane", user["name"])
		assert.NotContains(t, w.Body.String(), "memberpw", "password must never serialize")
	})

	t.Run("wrong password", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/login", "", "", gin.H{"id": "M001", "password": "nope", "role": "member"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("role mismatch", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/login", "", "", gin.H{"id": "M001", "password": "memberpw", "role": "admin"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad role value", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/login", "", "", gin.H{"id": "M001", "password": "memberpw", "role": "owner"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRoleEnforcement(t *testing.T) {
	ts := newTestServer(t)

	t.Run("no credentials", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/code", "", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
	})

	t.Run("member cannot view code", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/code", "M001", "memberpw", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("admin cannot validate as member", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/code/validate", "A001", "adminpw", gin.H{"code": "0000"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// TestCheckinFlow drives the whole workflow: admin reads the code, the
// member validates it, submits a check-in, the admin comments and exports.
func TestCheckinFlow(t *testing.T) {
	ts := newTestServer(t)

	// Admin fetches today's code.
	w := ts.do(t, http.MethodGet, "/api/code", "A001", "adminpw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	codeOut := decode(t, w)
	code := codeOut["code"].(string)
	date := codeOut["date"].(string)
	require.Len(t, code, 4)

	// Second fetch returns the same code.
	w = ts.do(t, http.MethodGet, "/api/code", "A001", "adminpw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, code, decode(t, w)["code"])

	// Member validates the code for a gate pass.
	w = ts.do(t, http.MethodPost, "/api/code/validate", "M001", "memberpw", gin.H{"code": code})
	require.Equal(t, http.StatusOK, w.Code)
	pass := decode(t, w)["pass"].(string)
	require.NotEmpty(t, pass)

	// Wrong code is rejected.
	wrong := "0000"
	if code == wrong {
		wrong = "0001"
	}
	w = ts.do(t, http.MethodPost, "/api/code/validate", "M001", "memberpw", gin.H{"code": wrong})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Member checks in with the pass.
	w = ts.do(t, http.MethodPost, "/api/checkins", "M001", "memberpw", gin.H{
		"position":    "Staff",
		"description": "Patrol",
		"photo":       "photo-ref",
		"location":    gin.H{"lat": -6.2, "lng": 106.8},
		"pass":        pass,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	rec := decode(t, w)
	recordID := rec["id"].(string)
	assert.Equal(t, "M001", rec["user_id"])
	assert.Equal(t, "Jane", rec["user_name"])
	assert.Equal(t, date, rec["date"])

	// Without a pass the submission is rejected.
	w = ts.do(t, http.MethodPost, "/api/checkins", "M001", "memberpw", gin.H{
		"position":    "Staff",
		"description": "Patrol",
		"photo":       "photo-ref",
		"location":    gin.H{"lat": -6.2, "lng": 106.8},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Incomplete submission names the missing field.
	w = ts.do(t, http.MethodPost, "/api/checkins", "M001", "memberpw", gin.H{
		"position":    "Staff",
		"description": "",
		"photo":       "photo-ref",
		"location":    gin.H{"lat": -6.2, "lng": 106.8},
		"pass":        pass,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "description")

	// Member sees their own records.
	w = ts.do(t, http.MethodGet, "/api/checkins", "M001", "memberpw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode(t, w)["records"].([]any)
	require.Len(t, records, 1)

	// Admin comments on the record.
	w = ts.do(t, http.MethodPost, "/api/records/"+recordID+"/comments", "A001", "adminpw", gin.H{"text": "Confirmed on-site"})
	require.Equal(t, http.StatusOK, w.Code)
	comments := decode(t, w)["comments"].([]any)
	require.Len(t, comments, 1)
	first := comments[0].(map[string]any)
	assert.Equal(t, "Confirmed on-site", first["text"])
	assert.Equal(t, "A001", first["admin_id"])

	// Blank comment is rejected.
	w = ts.do(t, http.MethodPost, "/api/records/"+recordID+"/comments", "A001", "adminpw", gin.H{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown record 404s.
	w = ts.do(t, http.MethodPost, "/api/records/missing/comments", "A001", "adminpw", gin.H{"text": "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Admin report groups by date.
	w = ts.do(t, http.MethodGet, "/api/reports", "A001", "adminpw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reports := decode(t, w)["reports"].([]any)
	require.Len(t, reports, 1)
	day := reports[0].(map[string]any)
	assert.Equal(t, date, day["date"])
	assert.Equal(t, float64(1), day["count"])

	// Export the day as CSV.
	w = ts.do(t, http.MethodGet, "/api/reports/export?date="+strings.ReplaceAll(date, "/", "%2F"), "A001", "adminpw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Attendance_")

	rows, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "M001", rows[1][0])
	assert.Equal(t, "Jane", rows[1][1])
	assert.Equal(t, "-6.2, 106.8", rows[1][6])
}

func TestProvisionAndPasswordChange(t *testing.T) {
	ts := newTestServer(t)

	// Admin provisions a member and reads the starter password once.
	w := ts.do(t, http.MethodPost, "/api/users", "A001", "adminpw", gin.H{"id": "M050", "name": "New Member"})
	require.Equal(t, http.StatusCreated, w.Code)
	initial := decode(t, w)["initial_password"].(string)
	require.Len(t, initial, directory.GeneratedPasswordLen)

	// The fresh member can log in with it.
	w = ts.do(t, http.MethodPost, "/api/login", "", "", gin.H{"id": "M050", "password": initial, "role": "member"})
	require.Equal(t, http.StatusOK, w.Code)

	// Duplicate ID conflicts.
	w = ts.do(t, http.MethodPost, "/api/users", "A001", "adminpw", gin.H{"id": "M050", "name": "Clone"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Member rotates their password.
	w = ts.do(t, http.MethodPost, "/api/users/password", "M050", initial, gin.H{
		"old_password": initial,
		"new_password": "fresh-secret",
		"confirm":      "fresh-secret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Old credentials stop working, new ones work.
	w = ts.do(t, http.MethodGet, "/api/checkins", "M050", initial, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = ts.do(t, http.MethodGet, "/api/checkins", "M050", "fresh-secret", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Wrong old password is a distinct failure.
	w = ts.do(t, http.MethodPost, "/api/users/password", "M050", "fresh-secret", gin.H{
		"old_password": "bogus",
		"new_password": "another-one",
		"confirm":      "another-one",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestImportUsers(t *testing.T) {
	ts := newTestServer(t)

	t.Run("csv upload", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "members.csv")
		require.NoError(t, err)
		fmt.Fprint(part, "id,name,role\nM060,Imported One,member\nM001,Collides,member\nM061,Imported Two,admin\n")
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/users/import", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.SetBasicAuth("A001", "adminpw")
		w := httptest.NewRecorder()
		ts.engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		out := decode(t, w)
		assert.Len(t, out["created"].([]any), 2)
		skipped := out["skipped"].([]any)
		require.Len(t, skipped, 1)
		assert.Equal(t, "M001", skipped[0].(map[string]any)["id"])
	})

	t.Run("json rows", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/users/import", "A001", "adminpw", gin.H{
			"rows": []gin.H{{"id": "M070", "name": "Via JSON"}},
		})
		require.Equal(t, http.StatusOK, w.Code)
		created := decode(t, w)["created"].([]any)
		require.Len(t, created, 1)
		entry := created[0].(map[string]any)
		assert.NotEmpty(t, entry["initial_password"])
	})
}

func TestRemoveUserKeepsRecords(t *testing.T) {
	ts := newTestServer(t)

	// Record a check-in for Jane, then remove her.
	w := ts.do(t, http.MethodGet, "/api/code", "A001", "adminpw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	code := decode(t, w)["code"].(string)

	w = ts.do(t, http.MethodPost, "/api/code/validate", "M001", "memberpw", gin.H{"code": code})
	require.Equal(t, http.StatusOK, w.Code)
	pass := decode(t, w)["pass"].(string)

	w = ts.do(t, http.MethodPost, "/api/checkins", "M001", "memberpw", gin.H{
		"position":    "Staff",
		"description": "Patrol",
		"photo":       "photo-ref",
		"location":    gin.H{"lat": -6.2, "lng": 106.8},
		"pass":        pass,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/users/M001", "A001", "adminpw", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Removal is immediate: her credentials are gone.
	w = ts.do(t, http.MethodGet, "/api/checkins", "M001", "memberpw", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// But her record survives with the snapshotted name.
	w = ts.do(t, http.MethodGet, "/api/checkins", "A001", "adminpw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode(t, w)["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "Jane", records[0].(map[string]any)["user_name"])

	// Removing again 404s.
	w = ts.do(t, http.MethodDelete, "/api/users/M001", "A001", "adminpw", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadPhotoPassthrough(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/photos", "M001", "memberpw", gin.H{"data": "data:image/jpeg;base64,abc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data:image/jpeg;base64,abc", decode(t, w)["photo"])
}

func TestListUsersHidesPasswords(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/users", "A001", "adminpw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode(t, w)["users"].([]any)
	assert.Len(t, users, 2)
	assert.NotContains(t, w.Body.String(), "memberpw")
	assert.NotContains(t, w.Body.String(), "adminpw")
}

func TestGetUser(t *testing.T) {
	ts := newTestServer(t)

	t.Run("found", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/users/M001", "A001", "adminpw", nil)
		require.Equal(t, http.StatusOK, w.Code)
		user := decode(t, w)["user"].(map[string]any)
		assert.Equal(t, "Jane", user["name"])
		assert.NotContains(t, w.Body.String(), "memberpw")
	})

	t.Run("unknown id", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/users/ghost", "A001", "adminpw", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("member cannot look up users", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/users/M001", "M001", "memberpw", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
