package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mockvox/go-interview-backend/internal/domain"
	"github.com/mockvox/go-interview-backend/internal/repo"
	"github.com/mockvox/go-interview-backend/internal/retell"
)

func TestNormalizeRole(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"backend engineer", "Backend Engineer"},
		{"  data   scientist  ", "Data Scientist"},
		{"", "Software Engineer"},
		{"   ", "Software Engineer"},
		{"SRE", "Sre"},
	}
	for _, c := range cases {
		if got := NormalizeRole(c.in); got != c.want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStartStoresPlaceholder(t *testing.T) {
	db := newTestDB(t)
	p := &stubProvider{
		agentID: "agent_custom",
		webCall: &retell.WebCall{CallID: "c-start", AccessToken: "tok", AgentID: "agent_custom"},
	}
	s := NewInterviewService(db, p, "agent_default")

	out, err := s.Start(context.Background(), "backend engineer", "user-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if out.CallID != "c-start" || out.AccessToken != "tok" {
		t.Fatalf("unexpected result %+v", out)
	}
	if p.webCallAgent != "agent_custom" {
		t.Fatalf("agent = %q", p.webCallAgent)
	}

	rec, err := repo.GetInterviewByCallID(context.Background(), db, "c-start")
	if err != nil {
		t.Fatalf("fetch placeholder: %v", err)
	}
	if rec.Status != domain.StatusStarted {
		t.Fatalf("status = %q", rec.Status)
	}
	if rec.JobRole != "Backend Engineer" {
		t.Fatalf("jobRole = %q", rec.JobRole)
	}
	if rec.UserID != "user-1" {
		t.Fatalf("userId = %q", rec.UserID)
	}
}

func TestStartFallsBackToDefaultAgent(t *testing.T) {
	db := newTestDB(t)
	p := &stubProvider{
		agentErr: errors.New("quota exceeded"),
		webCall:  &retell.WebCall{CallID: "c-fb", AccessToken: "tok"},
	}
	s := NewInterviewService(db, p, "agent_default")

	out, err := s.Start(context.Background(), "SRE", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.webCallAgent != "agent_default" {
		t.Fatalf("agent = %q, want default", p.webCallAgent)
	}
	if out.AgentID != "agent_default" {
		t.Fatalf("result agent = %q", out.AgentID)
	}
}

func TestStartWebCallFailure(t *testing.T) {
	db := newTestDB(t)
	p := &stubProvider{agentID: "a", webCallErr: errors.New("provider down")}
	s := NewInterviewService(db, p, "agent_default")

	if _, err := s.Start(context.Background(), "SRE", ""); err == nil {
		t.Fatal("expected error when web call creation fails")
	}
	if n, _ := repo.CountInterviews(context.Background(), db, ""); n != 0 {
		t.Fatalf("interviews = %d, want 0", n)
	}
}

func TestLatestEmptyStore(t *testing.T) {
	s := NewInterviewService(newTestDB(t), &stubProvider{}, "a")
	if _, err := s.Latest(context.Background()); !errors.Is(err, ErrInterviewNotFound) {
		t.Fatalf("err = %v, want ErrInterviewNotFound", err)
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	db := newTestDB(t)
	s := NewInterviewService(db, &stubProvider{}, "a")

	seed := []string{domain.StatusStarted, domain.StatusCompleted, domain.StatusCompleted, domain.StatusTerminated}
	for i, st := range seed {
		rec := &domain.Interview{
			CallID:  "c-stat-" + string(rune('a'+i)),
			JobRole: "Software Engineer",
			Status:  st,
		}
		if err := repo.CreateInterview(context.Background(), db, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Total: 4, Started: 1, Completed: 2, Terminated: 1}
	if *got != want {
		t.Fatalf("stats = %+v, want %+v", *got, want)
	}
}

func TestListPageDefaults(t *testing.T) {
	db := newTestDB(t)
	s := NewInterviewService(db, &stubProvider{}, "a")

	items, total, err := s.ListPage(context.Background(), 0, -1)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("expected empty page, got %d/%d", len(items), total)
	}
}

func TestTerminateTwoPhase(t *testing.T) {
	db := newTestDB(t)
	p := &stubProvider{hangUpErr: errors.New("call already ended")}
	s := NewInterviewService(db, p, "a")

	rec := &domain.Interview{CallID: "c-term", JobRole: "SRE", Status: domain.StatusStarted}
	if err := repo.CreateInterview(context.Background(), db, rec); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := s.Terminate(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if res.HungUp {
		t.Fatal("expected HungUp=false when provider hangup fails")
	}
	if p.hangUpCalled != "c-term" {
		t.Fatalf("hangup call id = %q", p.hangUpCalled)
	}

	got, err := repo.GetInterview(context.Background(), db, rec.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Status != domain.StatusTerminated {
		t.Fatalf("status = %q, want terminated", got.Status)
	}
	if got.EndedAt == nil || time.Since(*got.EndedAt) > time.Minute {
		t.Fatal("expected recent EndedAt")
	}
}

func TestTerminateMissing(t *testing.T) {
	s := NewInterviewService(newTestDB(t), &stubProvider{}, "a")
	if _, err := s.Terminate(context.Background(), "nope"); !errors.Is(err, ErrInterviewNotFound) {
		t.Fatalf("err = %v, want ErrInterviewNotFound", err)
	}
}
