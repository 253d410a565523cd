package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mockvox/go-interview-backend/internal/domain"
	"github.com/mockvox/go-interview-backend/internal/repo"
	"github.com/mockvox/go-interview-backend/internal/retell"
	"github.com/mockvox/go-interview-backend/internal/services"
)

// ---------- test DB + stubs ----------

func newInterviewDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:iv_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeProvider struct {
	webCall    *retell.WebCall
	webCallErr error
	callDoc    map[string]any
}

func (p *fakeProvider) CreateWebCall(context.Context, string, string, string) (*retell.WebCall, error) {
	return p.webCall, p.webCallErr
}
func (p *fakeProvider) CreateAgent(context.Context, string) (string, error) {
	return "agent_test", nil
}
func (p *fakeProvider) GetCall(context.Context, string) (map[string]any, error) {
	return p.callDoc, nil
}
func (p *fakeProvider) HangUp(context.Context, string) error { return nil }

type fakeGenerator struct{ out string }

func (g fakeGenerator) Generate(context.Context, string, string) (string, error) {
	return g.out, nil
}

func newRouter(t *testing.T, db *gorm.DB, p *fakeProvider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ivSvc := services.NewInterviewService(db, p, "agent_default")
	recon := services.NewReconcileService(db, fakeGenerator{out: "generated feedback"}, p)
	h := New(ivSvc, recon)

	r := gin.New()
	r.POST("/create-interview", h.CreateInterview)
	r.POST("/process-interview", h.ProcessInterview)
	r.GET("/interviews/latest", h.LatestInterview)
	r.POST("/retell/interview-complete", h.InterviewComplete)
	r.GET("/admin/stats", h.AdminStats)
	r.GET("/admin/interviews", h.AdminListInterviews)
	r.DELETE("/admin/interviews/:id", h.AdminTerminateInterview)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---------- create ----------

func TestCreateInterview(t *testing.T) {
	db := newInterviewDB(t)
	p := &fakeProvider{webCall: &retell.WebCall{CallID: "c1", AccessToken: "tok", AgentID: "agent_test"}}
	r := newRouter(t, db, p)

	w := doJSON(r, http.MethodPost, "/create-interview", gin.H{"jobRole": "backend engineer"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp CreateInterviewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.CallID != "c1" || resp.AccessToken != "tok" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreateInterviewRequiresJobRole(t *testing.T) {
	r := newRouter(t, newInterviewDB(t), &fakeProvider{})

	w := doJSON(r, http.MethodPost, "/create-interview", gin.H{"jobRole": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCreateInterviewInvalidJSON(t *testing.T) {
	r := newRouter(t, newInterviewDB(t), &fakeProvider{})

	req := httptest.NewRequest(http.MethodPost, "/create-interview", bytes.NewBufferString("{nope"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

// ---------- process ----------

func TestProcessInterviewRequiresCallID(t *testing.T) {
	r := newRouter(t, newInterviewDB(t), &fakeProvider{})

	w := doJSON(r, http.MethodPost, "/process-interview", gin.H{"jobRole": "SRE"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestProcessInterview(t *testing.T) {
	db := newInterviewDB(t)
	p := &fakeProvider{callDoc: map[string]any{
		"call_id":       "c-proc",
		"transcript":    "a long enough transcript",
		"call_duration": 90,
	}}
	r := newRouter(t, db, p)

	w := doJSON(r, http.MethodPost, "/process-interview", gin.H{"callId": "c-proc", "userId": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["success"] != true {
		t.Fatalf("body = %s", w.Body.String())
	}
	if resp["interviewId"] == "" || resp["interviewId"] == nil {
		t.Fatal("missing interviewId")
	}
}

// ---------- latest ----------

func TestLatestInterviewEmpty(t *testing.T) {
	r := newRouter(t, newInterviewDB(t), &fakeProvider{})

	w := doJSON(r, http.MethodGet, "/interviews/latest", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestLatestInterview(t *testing.T) {
	db := newInterviewDB(t)
	rec := &domain.Interview{
		CallID:   "c-latest",
		JobRole:  "Backend Engineer",
		Feedback: "solid",
		Status:   domain.StatusCompleted,
		Duration: 300,
	}
	if err := repo.CreateInterview(context.Background(), db, rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := newRouter(t, db, &fakeProvider{})

	w := doJSON(r, http.MethodGet, "/interviews/latest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp LatestInterviewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobRole != "Backend Engineer" || resp.Feedback != "solid" || resp.Duration != 300 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if _, err := time.Parse(time.RFC3339, resp.CreatedAt); err != nil {
		t.Fatalf("createdAt not RFC3339: %q", resp.CreatedAt)
	}
}

// ---------- webhook ----------

func TestInterviewCompleteInvalidJSON(t *testing.T) {
	r := newRouter(t, newInterviewDB(t), &fakeProvider{})

	req := httptest.NewRequest(http.MethodPost, "/retell/interview-complete", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestInterviewComplete(t *testing.T) {
	db := newInterviewDB(t)
	r := newRouter(t, db, &fakeProvider{})

	payload := gin.H{
		"event": "call_ended",
		"call": gin.H{
			"call_id":       "c-hook",
			"transcript":    "interviewer: walk me through your design",
			"call_duration": 300,
			"retell_llm_dynamic_variables": gin.H{
				"job_role": "Backend Engineer",
			},
		},
	}

	w := doJSON(r, http.MethodPost, "/retell/interview-complete", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["success"] != true {
		t.Fatalf("body = %s", w.Body.String())
	}
	firstID, _ := resp["interviewId"].(string)
	if firstID == "" {
		t.Fatal("missing interviewId")
	}

	// Redelivery of the same call converges on the same record.
	w = doJSON(r, http.MethodPost, "/retell/interview-complete", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if got, _ := resp["interviewId"].(string); got != firstID {
		t.Fatalf("redelivery produced %q, want %q", got, firstID)
	}

	rec, err := repo.GetInterviewByCallID(context.Background(), db, "c-hook")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %q", rec.Status)
	}
	if rec.Feedback != "generated feedback" {
		t.Fatalf("feedback = %q", rec.Feedback)
	}
	if rec.Duration != 300 {
		t.Fatalf("duration = %d", rec.Duration)
	}
}

// ---------- admin ----------

func TestAdminStatsAndList(t *testing.T) {
	db := newInterviewDB(t)
	for i, st := range []string{domain.StatusCompleted, domain.StatusStarted} {
		rec := &domain.Interview{
			CallID:  fmt.Sprintf("c-adm-%d", i),
			JobRole: "SRE",
			Status:  st,
		}
		if err := repo.CreateInterview(context.Background(), db, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	r := newRouter(t, db, &fakeProvider{})

	w := doJSON(r, http.MethodGet, "/admin/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats services.Stats
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.Total != 2 || stats.Completed != 1 || stats.Started != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	w = doJSON(r, http.MethodGet, "/admin/interviews?page=1&page_size=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list ListInterviewsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Interviews) != 1 || list.Pagination.Total != 2 || !list.Pagination.HasNext {
		t.Fatalf("list = %+v", list)
	}
}

func TestAdminTerminate(t *testing.T) {
	db := newInterviewDB(t)
	rec := &domain.Interview{CallID: "c-term", JobRole: "SRE", Status: domain.StatusStarted}
	if err := repo.CreateInterview(context.Background(), db, rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := newRouter(t, db, &fakeProvider{})

	w := doJSON(r, http.MethodDelete, "/admin/interviews/"+rec.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got, err := repo.GetInterview(context.Background(), db, rec.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Status != domain.StatusTerminated {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestAdminTerminateMissing(t *testing.T) {
	r := newRouter(t, newInterviewDB(t), &fakeProvider{})

	w := doJSON(r, http.MethodDelete, "/admin/interviews/"+uuid.NewString(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
