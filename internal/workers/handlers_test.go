package workers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mware "github.com/sudo-init-do/servicehub/internal/middleware"
	"github.com/sudo-init-do/servicehub/internal/store/memory"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, f workers.Filter) (workers.Page, bool, error) {
	args := m.Called(f)
	return args.Get(0).(workers.Page), args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, f workers.Filter, page workers.Page) error {
	return m.Called(f, page).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	return m.Called().Error(0)
}

func request(h echo.HandlerFunc, method, target, body, userID string, params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	e.Validator = mware.NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
	}
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	_ = h(c)
	return rec
}

const profileBody = `{"display_name":" Musa ","category":"Carpenter","charge_type":"daily","price":120,"skills":["Roofing"]}`

func TestUpsertProfileInvalidatesCache(t *testing.T) {
	st := memory.New()
	cache := new(mockCache)
	cache.On("Invalidate").Return(nil).Twice()
	h := workers.NewHandler(st, st, cache)

	rec := request(h.UpsertProfile, http.MethodPost, "/workers", profileBody, "w1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Profile workers.Profile `json:"worker_profile"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Musa", body.Profile.DisplayName)
	assert.Equal(t, workers.Available, body.Profile.Availability)
	firstID := body.Profile.ID

	// A second upsert edits the same profile.
	rec = request(h.UpsertProfile, http.MethodPost, "/workers", strings.Replace(profileBody, "120", "150", 1), "w1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, firstID, body.Profile.ID)
	assert.Equal(t, 150.0, body.Profile.Price)
	cache.AssertExpectations(t)
}

func TestUpsertProfileValidation(t *testing.T) {
	st := memory.New()
	h := workers.NewHandler(st, st, nil)

	rec := request(h.UpsertProfile, http.MethodPost, "/workers", `{"display_name":"x","category":"Astronaut","charge_type":"daily","price":1}`, "w1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "category must be one of")

	rec = request(h.UpsertProfile, http.MethodPost, "/workers", profileBody, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpsertIgnoresDerivedFields(t *testing.T) {
	st := memory.New()
	h := workers.NewHandler(st, st, nil)

	body := `{"display_name":"Musa","category":"Carpenter","charge_type":"daily","price":120,"rating":5,"total_reviews":99,"verified":true}`
	rec := request(h.UpsertProfile, http.MethodPost, "/workers", body, "w1")
	require.Equal(t, http.StatusOK, rec.Code)

	p, err := st.GetProfileByUser(context.Background(), "w1")
	require.NoError(t, err)
	assert.Zero(t, p.Rating)
	assert.Zero(t, p.TotalReviews)
	assert.False(t, p.Verified)
}

func TestDiscoverUsesCache(t *testing.T) {
	st := memory.New()
	require.NoError(t, st.UpsertProfile(context.Background(), &workers.Profile{UserID: "w1", DisplayName: "A", Category: "Plumber", Price: 10}))
	require.NoError(t, st.UpsertProfile(context.Background(), &workers.Profile{UserID: "w2", DisplayName: "B", Category: "Painter", Price: 20}))

	cache := new(mockCache)
	want := workers.Filter{Category: "Plumber"}.Normalize()
	cache.On("Get", want).Return(workers.Page{}, false, nil).Once()
	cache.On("Set", want, mock.MatchedBy(func(p workers.Page) bool { return p.Total == 1 })).Return(nil).Once()
	h := workers.NewHandler(st, st, cache)

	rec := request(h.Discover, http.MethodGet, "/workers?category=Plumber", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page workers.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Workers, 1)
	assert.Equal(t, "A", page.Workers[0].DisplayName)

	cached := workers.Page{Workers: []workers.Profile{{DisplayName: "cached"}}, Total: 1}
	cache.On("Get", want).Return(cached, true, nil).Once()
	rec = request(h.Discover, http.MethodGet, "/workers?category=Plumber", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cached")
	cache.AssertExpectations(t)
}

func TestDiscoverRejectsBadFilters(t *testing.T) {
	st := memory.New()
	h := workers.NewHandler(st, st, nil)

	for _, q := range []string{"min_price=abc", "verified=maybe", "limit=-1"} {
		rec := request(h.Discover, http.MethodGet, "/workers?"+q, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	st := memory.New()
	h := workers.NewHandler(st, st, nil)

	rec := request(h.GetProfile, http.MethodGet, "/workers/nope", "", "", "id", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = request(h.GetMyProfile, http.MethodGet, "/workers/me", "", "w9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
