package laboratory

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

	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

type mockRepo struct {
	items map[uuid.UUID]*LabTest
	order []uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*LabTest)}
}

func (m *mockRepo) Create(_ context.Context, t *LabTest) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.items[t.ID] = t
	m.order = append(m.order, t.ID)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*LabTest, error) {
	t, ok := m.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return t, nil
}

func (m *mockRepo) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*LabTest, error) {
	var out []*LabTest
	for _, id := range m.order {
		if t := m.items[id]; t.VisitID == visitID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, t *LabTest) error {
	if _, ok := m.items[t.ID]; !ok {
		return apperr.ErrNotFound
	}
	m.items[t.ID] = t
	return nil
}

type mockVisits map[uuid.UUID]*visit.Visit

func (m mockVisits) GetVisit(_ context.Context, id uuid.UUID) (*visit.Visit, error) {
	v, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("visit not found")
	}
	return v, nil
}

func setup() (*Service, *visit.Visit, auth.Actor) {
	v := &visit.Visit{ID: uuid.New(), PatientID: uuid.New(), BranchID: uuid.New(), Status: visit.StatusInProgress, CurrentStage: visit.StageDoctor}
	svc := NewService(newMockRepo(), mockVisits{v.ID: v})
	return svc, v, auth.Actor{StaffID: uuid.New(), Roles: []string{auth.RoleDoctor}}
}

func TestOrder(t *testing.T) {
	svc, v, doc := setup()
	charge := uuid.New()
	lt, err := svc.Order(context.Background(), doc, v.ID, OrderRequest{Name: " Malaria Parasite ", Category: "parasitology", ServiceChargeID: &charge})
	require.NoError(t, err)
	assert.Equal(t, "Malaria Parasite", lt.Name)
	assert.Equal(t, StatusOrdered, lt.Status)
	assert.Equal(t, v.PatientID, lt.PatientID)
	assert.Equal(t, v.BranchID, lt.BranchID)
	assert.Equal(t, doc.StaffID, lt.OrderedBy)
}

func TestOrder_Rejections(t *testing.T) {
	svc, v, doc := setup()
	ctx := context.Background()

	_, err := svc.Order(ctx, doc, v.ID, OrderRequest{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Order(ctx, doc, uuid.New(), OrderRequest{Name: "FBC"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	v.Status = visit.StatusCompleted
	_, err = svc.Order(ctx, doc, v.ID, OrderRequest{Name: "FBC"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestResultLifecycle(t *testing.T) {
	svc, v, doc := setup()
	ctx := context.Background()
	scientist := auth.Actor{StaffID: uuid.New(), Roles: []string{auth.RoleLabScientist}}

	lt, err := svc.Order(ctx, doc, v.ID, OrderRequest{Name: "FBC"})
	require.NoError(t, err)

	lt, err = svc.Start(ctx, lt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, lt.Status)

	_, err = svc.Start(ctx, lt.ID)
	assert.Error(t, err)

	_, err = svc.RecordResult(ctx, scientist, lt.ID, "  ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	lt, err = svc.RecordResult(ctx, scientist, lt.ID, "Hb 12.1 g/dL")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, lt.Status)
	assert.Equal(t, scientist.StaffID, *lt.CompletedBy)
	assert.NotNil(t, lt.CompletedAt)

	_, err = svc.RecordResult(ctx, scientist, lt.ID, "again")
	assert.Error(t, err)
}

func TestListByVisit_Ordered(t *testing.T) {
	svc, v, doc := setup()
	ctx := context.Background()
	for _, n := range []string{"FBC", "Widal", "MP"} {
		_, err := svc.Order(ctx, doc, v.ID, OrderRequest{Name: n})
		require.NoError(t, err)
	}
	items, err := svc.ListByVisit(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "FBC", items[0].Name)
	assert.Equal(t, "MP", items[2].Name)
}

func TestHandler_Order(t *testing.T) {
	svc, v, doc := setup()
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Urinalysis"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithActor(req.Context(), doc))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())

	require.NoError(t, h.Order(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ORDERED"`)
}

func TestHandler_ListByVisit_EmptyIsArray(t *testing.T) {
	svc, v, _ := setup()
	h := NewHandler(svc)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())

	require.NoError(t, h.ListByVisit(c))
	assert.Equal(t, "[]\n", rec.Body.String())
}
