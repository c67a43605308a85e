package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/model"
	"github.com/sudo-init-do/localfix/internal/store"
)

type fakeStore struct {
	jobs     map[string]model.Job
	accepted map[string]string
	bookings map[string]model.Booking
	services map[string]model.Service
	reviews  []model.ReviewWithParties
	listErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs: map[string]model.Job{
			"job-done": {ID: "job-done", PosterID: "client-c", Status: model.JobCompleted},
			"job-open": {ID: "job-open", PosterID: "client-c", Status: model.JobOpen},
		},
		accepted: map[string]string{"job-done": "worker-w"},
		bookings: map[string]model.Booking{
			"bk-done":    {ID: "bk-done", ServiceID: "svc-1", ClientID: "client-b", Status: model.BookingCompleted},
			"bk-pending": {ID: "bk-pending", ServiceID: "svc-1", ClientID: "client-b", Status: model.BookingPending},
		},
		services: map[string]model.Service{"svc-1": {ID: "svc-1", ProviderID: "provider-p"}},
	}
}

func (f *fakeStore) GetJob(_ context.Context, id string) (model.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return j, apperr.NotFound("job not found")
	}
	return j, nil
}

func (f *fakeStore) AcceptedApplication(_ context.Context, jobID string) (*model.JobApplication, error) {
	p, ok := f.accepted[jobID]
	if !ok {
		return nil, nil
	}
	return &model.JobApplication{JobID: jobID, ProviderID: p, Status: model.ApplicationAccepted}, nil
}

func (f *fakeStore) GetBooking(_ context.Context, id string) (model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return b, apperr.NotFound("booking not found")
	}
	return b, nil
}

func (f *fakeStore) GetService(_ context.Context, id string) (model.Service, error) {
	return f.services[id], nil
}

func same(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (f *fakeStore) ReviewExists(_ context.Context, reviewerID, revieweeID string, jobID, bookingID *string) (bool, error) {
	for _, r := range f.reviews {
		if r.ReviewerID == reviewerID && r.RevieweeID == revieweeID && same(r.JobID, jobID) && same(r.BookingID, bookingID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertReview(_ context.Context, r model.Review) (model.ReviewWithParties, error) {
	r.ID = "rev-" + r.ReviewerID
	r.CreatedAt = time.Now()
	out := model.ReviewWithParties{
		Review:   r,
		Reviewer: &model.PublicProfile{ID: r.ReviewerID, FullName: "Reviewer"},
		Reviewee: &model.PublicProfile{ID: r.RevieweeID, FullName: "Reviewee"},
	}
	f.reviews = append(f.reviews, out)
	return out, nil
}

func (f *fakeStore) ListReviews(_ context.Context, filter store.ReviewFilter) ([]model.ReviewWithParties, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.ReviewWithParties{}
	for _, r := range f.reviews {
		if filter.UserID != "" && r.ReviewerID != filter.UserID && r.RevieweeID != filter.UserID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func ptr(s string) *string { return &s }

func TestAdmitOrder(t *testing.T) {
	tests := []struct {
		name string
		sub  Submission
		is   func(error) bool
		msg  string
	}{
		{"missing reviewee", Submission{ReviewerID: "worker-w", Rating: "5", JobID: ptr("job-done")}, apperr.IsValidation, "revieweeId is required"},
		{"self review", Submission{ReviewerID: "worker-w", RevieweeID: "worker-w", Rating: "5", JobID: ptr("job-done")}, apperr.IsValidation, "yourself"},
		{"rating too high", Submission{ReviewerID: "worker-w", RevieweeID: "client-c", Rating: "6", JobID: ptr("job-done")}, apperr.IsValidation, "rating"},
		{"fractional rating", Submission{ReviewerID: "worker-w", RevieweeID: "client-c", Rating: "4.5", JobID: ptr("job-done")}, apperr.IsValidation, "rating"},
		{"missing rating", Submission{ReviewerID: "worker-w", RevieweeID: "client-c", JobID: ptr("job-done")}, apperr.IsValidation, "rating"},
		{"no target", Submission{ReviewerID: "worker-w", RevieweeID: "client-c", Rating: "5"}, apperr.IsValidation, "exactly one"},
		{"two targets", Submission{ReviewerID: "worker-w", RevieweeID: "client-c", Rating: "5", JobID: ptr("job-done"), BookingID: ptr("bk-done")}, apperr.IsValidation, "exactly one"},
		{"unknown job", Submission{ReviewerID: "worker-w", RevieweeID: "client-c", Rating: "5", JobID: ptr("nope")}, apperr.IsNotFound, "Job not found"},
		{"job not completed", Submission{ReviewerID: "worker-w", RevieweeID: "client-c", Rating: "5", JobID: ptr("job-open")}, apperr.IsState, "completed"},
		{"booking not completed", Submission{ReviewerID: "client-b", RevieweeID: "provider-p", Rating: "5", BookingID: ptr("bk-pending")}, apperr.IsState, "completed"},
		{"outsider", Submission{ReviewerID: "worker-x", RevieweeID: "client-c", Rating: "5", JobID: ptr("job-done")}, apperr.IsForbidden, "parties"},
		{"wrong reviewee", Submission{ReviewerID: "client-b", RevieweeID: "someone", Rating: "5", BookingID: ptr("bk-done")}, apperr.IsForbidden, "parties"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Admit(context.Background(), newFakeStore(), tt.sub)
			require.Error(t, err)
			assert.True(t, tt.is(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))
		})
	}
}

func TestAdmitBothDirections(t *testing.T) {
	st := newFakeStore()
	ctx := context.Background()

	r, err := Admit(ctx, st, Submission{ReviewerID: "worker-w", RevieweeID: "client-c", Rating: "5", JobID: ptr("job-done")})
	require.NoError(t, err)
	assert.Equal(t, 5, r.Rating)

	_, err = Admit(ctx, st, Submission{ReviewerID: "client-c", RevieweeID: "worker-w", Rating: "4", JobID: ptr("job-done")})
	require.NoError(t, err)

	_, err = Admit(ctx, st, Submission{ReviewerID: "provider-p", RevieweeID: "client-b", Rating: "3", BookingID: ptr("bk-done")})
	require.NoError(t, err)
}

type tokenVerifier struct{}

func (tokenVerifier) Subject(token string) (string, error) {
	if !strings.HasPrefix(token, "tok-") {
		return "", errors.New("invalid token")
	}
	return strings.TrimPrefix(token, "tok-"), nil
}

type profiles struct{}

func (profiles) GetProfile(_ context.Context, id string) (model.Profile, error) {
	return model.Profile{ID: id, Role: model.RoleWorker}, nil
}

type notifications struct{ received []string }

func (n *notifications) ReviewReceived(_ context.Context, revieweeID, _ string, _ int) error {
	n.received = append(n.received, revieweeID)
	return nil
}

func newHandler(st *fakeStore, n *notifications) *Handler {
	resolver := auth.NewAuthenticator(tokenVerifier{}, profiles{}, "sb-access-token", zap.NewNop())
	return NewHandler(st, resolver, n, zap.NewNop())
}

func post(t *testing.T, h *Handler, body string, header string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Create(e.NewContext(req, rec)))
	return rec
}

func TestCreateReviewFlow(t *testing.T) {
	st := newFakeStore()
	n := &notifications{}
	h := newHandler(st, n)

	body := `{"revieweeId":"client-c","jobId":"job-done","rating":5,"comment":"Great client"}`

	rec := post(t, h, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The body token is accepted when no cookie or header is present.
	rec = post(t, h, `{"revieweeId":"client-c","jobId":"job-done","rating":5,"accessToken":"tok-worker-w"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var saved map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "worker-w", saved["reviewer_id"])
	reviewee := saved["reviewee"].(map[string]any)
	assert.NotContains(t, reviewee, "email")
	assert.NotContains(t, reviewee, "phone")
	assert.Equal(t, []string{"client-c"}, n.received)

	// Same reviewer, same job, same reviewee: rejected with the historical 400.
	rec = post(t, h, body, "Bearer tok-worker-w")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"You have already reviewed this item"}`, rec.Body.String())
	assert.Len(t, st.reviews, 1)
}

func TestListReviews(t *testing.T) {
	st := newFakeStore()
	h := newHandler(st, &notifications{})
	_, err := st.InsertReview(context.Background(), model.Review{ReviewerID: "worker-w", RevieweeID: "client-c", JobID: ptr("job-done"), Rating: 5})
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/reviews?userId=client-c", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.List(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reviewee_id":"client-c"`)

	st.listErr = errors.New("db down")
	rec = httptest.NewRecorder()
	require.NoError(t, h.List(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch reviews"}`, rec.Body.String())
}
