package appointment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type mockRepo struct {
	items map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.items[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f Filter, _, _ int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.items {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	a, ok := m.items[id]
	if !ok {
		return apperr.ErrNotFound
	}
	a.Status = status
	return nil
}

func newScheduled(t *testing.T, svc *Service) *Appointment {
	t.Helper()
	a := &Appointment{PatientID: uuid.New(), BranchID: uuid.New(), ScheduledAt: time.Now().Add(time.Hour)}
	require.NoError(t, svc.CreateAppointment(context.Background(), a))
	return a
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusCheckedIn, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusCheckedIn, StatusCompleted, true},
		{StatusCheckedIn, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusCheckedIn, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCreateAppointment_DefaultsToScheduled(t *testing.T) {
	svc := NewService(newMockRepo())
	a := newScheduled(t, svc)
	assert.Equal(t, StatusScheduled, a.Status)
}

func TestCreateAppointment_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.CreateAppointment(context.Background(), &Appointment{PatientID: uuid.New(), BranchID: uuid.New()})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCheckInThenComplete(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()
	a := newScheduled(t, svc)

	require.NoError(t, svc.CheckIn(ctx, a.ID))
	assert.Equal(t, StatusCheckedIn, repo.items[a.ID].Status)
	require.NoError(t, svc.Complete(ctx, a.ID))
	assert.Equal(t, StatusCompleted, repo.items[a.ID].Status)

	// completing twice is harmless
	require.NoError(t, svc.Complete(ctx, a.ID))
}

func TestUpdateStatus_RejectsReopeningCancelled(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	a := newScheduled(t, svc)
	_, err := svc.UpdateStatus(ctx, a.ID, StatusCancelled)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, a.ID, StatusCheckedIn)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.Complete(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestHandler_UpdateStatus(t *testing.T) {
	svc := NewService(newMockRepo())
	h := NewHandler(svc)
	e := echo.New()
	a := newScheduled(t, svc)

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"CHECKED_IN"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CHECKED_IN"`)
}

func TestHandler_ListAppointments_BadDate(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?date=03/01/2026", nil)
	err := h.ListAppointments(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
