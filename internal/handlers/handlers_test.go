package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/abrezinsky/ecobingo/internal/auth"
	"github.com/abrezinsky/ecobingo/internal/cache"
	"github.com/abrezinsky/ecobingo/internal/fraud"
	"github.com/abrezinsky/ecobingo/internal/handlers"
	"github.com/abrezinsky/ecobingo/internal/logger"
	"github.com/abrezinsky/ecobingo/internal/metrics"
	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/photostore"
	"github.com/abrezinsky/ecobingo/internal/repository"
	"github.com/abrezinsky/ecobingo/internal/services"
	"github.com/abrezinsky/ecobingo/internal/testutil"
	"github.com/abrezinsky/ecobingo/internal/websocket"
)

type testServer struct {
	router   http.Handler
	repo     *repository.Repository
	auth     *auth.Auth
	player   *models.User
	reviewer *models.User
	admin    *models.User
}

// setupTestServer wires the full handler stack over an in-memory repository
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	log := logger.NewNop()
	photos := photostore.NewMemory()

	detector := fraud.NewDetector(log, repo, photos, cache.NewMemory(), fraud.Options{})
	achievements := services.NewAchievementService(log, repo, nil)
	submissions := services.NewSubmissionService(log, repo, photos, detector, achievements, false)
	leaderboard := services.NewLeaderboardService(log, repo, nil)
	tasks := services.NewTaskService(log, repo, "http://bingo.test")

	a := auth.New("handler-secret", time.Hour, repo)
	h := handlers.New(submissions, achievements, leaderboard, tasks, a, websocket.New(log), metrics.New(), log)
	h.Ping = repo.Ping

	return &testServer{
		router:   h.Router(),
		repo:     repo,
		auth:     a,
		player:   testutil.CreateUser(t, repo, "alice", models.RolePlayer),
		reviewer: testutil.CreateUser(t, repo, "gamekeeper", models.RoleReviewer),
		admin:    testutil.CreateUser(t, repo, "developer", models.RoleAdmin),
	}
}

func (s *testServer) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := s.auth.Issue(u.Username, u.Role)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, req *http.Request, as *models.User) *httptest.ResponseRecorder {
	t.Helper()
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, as))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(t *testing.T, path string, body interface{}, as *models.User) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req, as)
}

// photoRequest builds a multipart submission with the given part content type
func photoRequest(t *testing.T, path string, data []byte, contentType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="photo"; filename="photo.png"`)
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart failed: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.APIError {
	t.Helper()
	var apiErr handlers.APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return apiErr
}

func submitPath(taskID int64) string {
	return "/api/tasks/" + itoa(taskID) + "/submit"
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)
	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestListTasksAndPatterns(t *testing.T) {
	s := setupTestServer(t)
	testutil.CreateTasks(t, s.repo, 2, 10)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/tasks", nil), nil)
	var tasks []models.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil || len(tasks) != 2 {
		t.Errorf("expected 2 tasks, got %s (%v)", rec.Body.String(), err)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/patterns", nil), nil)
	var pr handlers.PatternsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pr); err != nil || len(pr.Patterns) != 6 {
		t.Errorf("expected 6 patterns, got %s (%v)", rec.Body.String(), err)
	}
}

func TestSubmit_RequiresToken(t *testing.T) {
	s := setupTestServer(t)
	task := testutil.CreateTasks(t, s.repo, 1, 10)[0]

	rec := s.do(t, httptest.NewRequest(http.MethodPost, submitPath(task.ID), nil), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestSubmit_PhotoFlow(t *testing.T) {
	s := setupTestServer(t)
	first := testutil.CreateTask(t, s.repo, models.Task{Description: "Litter pick", Points: 10, RequiresUpload: true})
	second := testutil.CreateTask(t, s.repo, models.Task{Description: "Reusable cup", Points: 5, RequiresUpload: true})
	photo := testutil.DistinctPNG(t, 2)

	rec := s.do(t, photoRequest(t, submitPath(first.ID), photo, "image/png"), s.player)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var res services.SubmitResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Status != models.StatusPending || res.SubmissionID == 0 {
		t.Errorf("unexpected result %+v", res)
	}

	rec = s.do(t, photoRequest(t, submitPath(first.ID), photo, "image/png"), s.player)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "DUPLICATE_SUBMISSION" {
		t.Errorf("expected duplicate, got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, photoRequest(t, submitPath(second.ID), photo, "image/png"), s.player)
	apiErr := decodeError(t, rec)
	if rec.Code != http.StatusBadRequest || apiErr.Code != "FRAUD_SUSPECTED" {
		t.Fatalf("expected fraud rejection, got %d %s", rec.Code, rec.Body.String())
	}
	if apiErr.MatchedTask != "Litter pick" || apiErr.Similarity < fraud.DefaultThreshold {
		t.Errorf("unexpected fraud details %+v", apiErr)
	}
}

func TestSubmit_UploadErrors(t *testing.T) {
	s := setupTestServer(t)
	task := testutil.CreateTask(t, s.repo, models.Task{Description: "Litter pick", Points: 10, RequiresUpload: true})

	rec := s.do(t, httptest.NewRequest(http.MethodPost, submitPath(task.ID), nil), s.player)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "MISSING_UPLOAD" {
		t.Errorf("expected MISSING_UPLOAD, got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, photoRequest(t, submitPath(task.ID), []byte("plain text"), "text/plain"), s.player)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "UNSUPPORTED_FILE_TYPE" {
		t.Errorf("expected UNSUPPORTED_FILE_TYPE, got %d %s", rec.Code, rec.Body.String())
	}

	big := make([]byte, services.MaxPhotoBytes+1)
	rec = s.do(t, photoRequest(t, submitPath(task.ID), big, "image/png"), s.player)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "FILE_TOO_LARGE" {
		t.Errorf("expected FILE_TOO_LARGE, got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, httptest.NewRequest(http.MethodPost, submitPath(999), nil), s.player)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown task, got %d", rec.Code)
	}
}

func TestSubmit_RejectsUndeclaredContentType(t *testing.T) {
	s := setupTestServer(t)
	task := testutil.CreateTask(t, s.repo, models.Task{Description: "Litter pick", Points: 10, RequiresUpload: true})

	// valid PNG bytes, but the part declares no type
	rec := s.do(t, photoRequest(t, submitPath(task.ID), testutil.DistinctPNG(t, 1), ""), s.player)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for undeclared photo type, got %d %s", rec.Code, rec.Body.String())
	}
	if code := decodeError(t, rec).Code; code != "UNSUPPORTED_FILE_TYPE" {
		t.Errorf("expected UNSUPPORTED_FILE_TYPE, got %s", code)
	}
}

func TestReviewFlow(t *testing.T) {
	s := setupTestServer(t)
	task := testutil.CreateTask(t, s.repo, models.Task{Description: "Litter pick", Points: 10, RequiresUpload: true})
	photo := testutil.DistinctPNG(t, 6)

	if rec := s.do(t, photoRequest(t, submitPath(task.ID), photo, "image/png"), s.player); rec.Code != http.StatusCreated {
		t.Fatalf("submit failed: %d %s", rec.Code, rec.Body.String())
	}

	// queue is reviewer-only
	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/review/pending", nil), s.player)
	if rec.Code != http.StatusForbidden || decodeError(t, rec).Code != "PERMISSION_DENIED" {
		t.Errorf("expected 403, got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/review/pending", nil), s.reviewer)
	var pending []handlers.PendingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending entry, got %s (%v)", rec.Body.String(), err)
	}
	if pending[0].PhotoURL == "" || pending[0].Username != "alice" {
		t.Errorf("unexpected pending entry %+v", pending[0])
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, pending[0].PhotoURL, nil), s.reviewer)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" || !bytes.Equal(rec.Body.Bytes(), photo) {
		t.Errorf("unexpected photo response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	review := handlers.ReviewRequest{UserID: s.player.ID, TaskID: task.ID}
	rec = s.postJSON(t, "/api/review/approve", review, s.player)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected players to be refused, got %d", rec.Code)
	}

	rec = s.postJSON(t, "/api/review/approve", review, s.reviewer)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Task approved for alice. 10 points rewarded.") {
		t.Fatalf("unexpected approve response %d %s", rec.Code, rec.Body.String())
	}

	rec = s.postJSON(t, "/api/review/approve", review, s.reviewer)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "ALREADY_APPROVED" {
		t.Errorf("expected ALREADY_APPROVED, got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.postJSON(t, "/api/review/reject", handlers.ReviewRequest{UserID: s.player.ID, TaskID: 999}, s.reviewer)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown task, got %d", rec.Code)
	}

	rec = s.postJSON(t, "/api/review/approve", map[string]int{"user_id": 1}, s.reviewer)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for incomplete request, got %d", rec.Code)
	}
}

func TestBadgesAndLeaderboard(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	tasks := testutil.CreateTasks(t, s.repo, 9, 10)
	for _, task := range tasks[:3] {
		if _, err := s.repo.SaveApprovedSubmission(ctx, repository.NewSubmission{UserID: s.player.ID, TaskID: task.ID}, task.Points); err != nil {
			t.Fatalf("SaveApprovedSubmission failed: %v", err)
		}
	}

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/me/badges", nil), s.player)
	var badges handlers.BadgesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &badges); err != nil {
		t.Fatalf("decode failed: %v (%s)", err, rec.Body.String())
	}
	if len(badges.Badges) != 1 || badges.Badges[0].PatternCode != models.PatternHoriz {
		t.Errorf("expected HORIZ badge, got %+v", badges)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/users/"+itoa(s.player.ID)+"/badges", nil), s.reviewer)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"pattern":"HORIZ"`) {
		t.Errorf("unexpected user badges response %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/leaderboard?top=1", nil), nil)
	var lb services.Leaderboard
	if err := json.Unmarshal(rec.Body.Bytes(), &lb); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(lb.Lifetime) != 1 || lb.Lifetime[0].Username != "alice" || lb.Lifetime[0].Points != 40 {
		t.Errorf("unexpected leaderboard %+v", lb)
	}
	if !strings.Contains(rec.Body.String(), "monthly_leaderboard") {
		t.Error("expected monthly_leaderboard key")
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/leaderboard?top=abc", nil), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad top, got %d", rec.Code)
	}
}

func TestReviewerTools(t *testing.T) {
	s := setupTestServer(t)

	rec := s.postJSON(t, "/api/review/tasks", services.CreateTaskRequest{Description: "Fix a bike", Points: 15}, s.reviewer)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var task models.Task
	json.Unmarshal(rec.Body.Bytes(), &task)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/review/tasks/"+itoa(task.ID)+"/qr", nil), s.reviewer)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("unexpected qr response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = s.postJSON(t, "/api/review/force-award", handlers.ForceAwardRequest{UserID: s.player.ID, Pattern: models.PatternX}, s.reviewer)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"granted":true`) {
		t.Errorf("unexpected force award response %d %s", rec.Code, rec.Body.String())
	}

	rec = s.postJSON(t, "/api/review/force-award", handlers.ForceAwardRequest{UserID: s.player.ID, Pattern: "Z"}, s.reviewer)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown pattern, got %d", rec.Code)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodPost, "/api/review/reset-monthly", nil), s.reviewer)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected reset to be admin-only, got %d", rec.Code)
	}
	rec = s.do(t, httptest.NewRequest(http.MethodPost, "/api/review/reset-monthly", nil), s.admin)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"reset":true`) {
		t.Errorf("unexpected reset response %d %s", rec.Code, rec.Body.String())
	}
}

func TestMe(t *testing.T) {
	s := setupTestServer(t)
	testutil.CreateTasks(t, s.repo, 2, 10)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/me", nil), s.player)
	var me handlers.MeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if me.User.ID != s.player.ID || len(me.Tasks) != 2 {
		t.Errorf("unexpected me response %+v", me)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ecobingo_http_requests_total") {
		t.Errorf("expected request metrics, got %d", rec.Code)
	}
}

// failingTasks is a task service whose catalog read always fails
type failingTasks struct {
	services.TaskServicer
}

func (failingTasks) ListTasks(context.Context) ([]models.Task, error) {
	return nil, errors.New("disk on fire")
}

func TestInternalErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, slog.LevelInfo)
	h := handlers.New(nil, nil, nil, failingTasks{}, auth.New("handler-secret", time.Hour, nil), nil, nil, log)
	router := h.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "disk on fire") {
		t.Errorf("response leaked the internal error: %s", rec.Body.String())
	}

	out := buf.String()
	for _, want := range []string{"Internal error", "disk on fire", "/api/tasks"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q, got %q", want, out)
		}
	}

	// client errors are not logged
	buf.Reset()
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard?top=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output for a 400, got %q", buf.String())
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"duplicate", services.ErrAlreadyPending, http.StatusBadRequest, "DUPLICATE_SUBMISSION"},
		{"forbidden", services.ErrPermissionDenied, http.StatusForbidden, "PERMISSION_DENIED"},
		{"not found", services.ErrTaskNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"fraud", &services.FraudError{Similarity: 92, MatchedTask: "x"}, http.StatusBadRequest, "FRAUD_SUSPECTED"},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := handlers.ToAPIError(tt.err)
			if apiErr.Status != tt.status || apiErr.Code != tt.code {
				t.Errorf("expected %d %s, got %d %s", tt.status, tt.code, apiErr.Status, apiErr.Code)
			}
		})
	}

	if handlers.ToAPIError(errors.New("secret detail")).Message != "Internal server error" {
		t.Error("internal errors must not leak details")
	}
}
