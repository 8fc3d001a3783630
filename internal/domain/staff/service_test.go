package staff

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
	items map[uuid.UUID]*Staff
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Staff)}
}

func (m *mockRepo) Create(_ context.Context, s *Staff) error {
	for _, existing := range m.items {
		if existing.Email == s.Email {
			return apperr.Conflict("a staff member with email %s already exists", s.Email)
		}
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.items[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Staff, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return s, nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Staff, int, error) {
	var out []*Staff
	for _, s := range m.items {
		if f.Role != "" && s.Role != f.Role {
			continue
		}
		if f.ActiveOnly && !s.Active {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListActiveByRoleAndBranch(_ context.Context, role string, branchID *uuid.UUID) ([]*Staff, error) {
	var out []*Staff
	for _, s := range m.items {
		if s.Role != role || !s.Active {
			continue
		}
		if branchID != nil && (s.BranchID == nil || *s.BranchID != *branchID) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	s, ok := m.items[id]
	if !ok {
		return apperr.ErrNotFound
	}
	s.Active = active
	return nil
}

func TestCreateStaff(t *testing.T) {
	svc := NewService(newMockRepo())
	st := &Staff{Name: " Ada Obi ", Email: "Ada@Clinic.test", Role: "nurse"}
	require.NoError(t, svc.CreateStaff(context.Background(), st))
	assert.Equal(t, "Ada Obi", st.Name)
	assert.Equal(t, "ada@clinic.test", st.Email)
	assert.True(t, st.Active)
	assert.NotEqual(t, uuid.Nil, st.ID)
}

func TestCreateStaff_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	cases := map[string]*Staff{
		"missing name": {Email: "a@b.test", Role: "nurse"},
		"bad email":    {Name: "A", Email: "nope", Role: "nurse"},
		"unknown role": {Name: "A", Email: "a@b.test", Role: "janitor"},
		"empty role":   {Name: "A", Email: "a@b.test"},
	}
	for name, st := range cases {
		t.Run(name, func(t *testing.T) {
			err := svc.CreateStaff(context.Background(), st)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestActiveForRole_ScopesByBranch(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	branchA, branchB := uuid.New(), uuid.New()

	a := &Staff{Name: "A", Email: "a@x.test", Role: "doctor", BranchID: &branchA}
	b := &Staff{Name: "B", Email: "b@x.test", Role: "doctor", BranchID: &branchB}
	c := &Staff{Name: "C", Email: "c@x.test", Role: "doctor", BranchID: &branchA}
	n := &Staff{Name: "N", Email: "n@x.test", Role: "nurse", BranchID: &branchA}
	for _, s := range []*Staff{a, b, c, n} {
		require.NoError(t, svc.CreateStaff(ctx, s))
	}
	require.NoError(t, svc.Deactivate(ctx, c.ID))

	got, err := svc.ActiveForRole(ctx, "doctor", &branchA)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	all, err := svc.ActiveForRole(ctx, "doctor", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetStaff_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())
	_, err := svc.GetStaff(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeactivate_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.Deactivate(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestHandler_CreateAndGetStaff(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))
	e := echo.New()

	body := `{"name":"Kemi","email":"kemi@clinic.test","role":"pharmacist"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.CreateStaff(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"pharmacist"`)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	err := h.GetStaff(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestHandler_ListStaff_BadBranch(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?branchId=xyz", nil)
	err := h.ListStaff(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
