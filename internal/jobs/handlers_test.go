package jobs_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/servicehub/internal/jobs"
	mware "github.com/sudo-init-do/servicehub/internal/middleware"
	"github.com/sudo-init-do/servicehub/internal/store/memory"
)

func request(h echo.HandlerFunc, method, target, body, userID, id string) *httptest.ResponseRecorder {
	e := echo.New()
	e.Validator = mware.NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
	}
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	_ = h(c)
	return rec
}

func TestJobPostingFlow(t *testing.T) {
	h := jobs.NewHandler(memory.New())

	body := `{"title":"Site cleaner","description":"Daily cleaning","category":"Cleaning","salary":3000,"location":"Lagos"}`
	rec := request(h.Create, http.MethodPost, "/jobs", body, "biz1", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Job jobs.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, jobs.SalaryMonthly, created.Job.SalaryType)
	assert.Equal(t, jobs.StatusOpen, created.Job.Status)
	id := created.Job.ID

	rec = request(h.List, http.MethodGet, "/jobs?category=Cleaning", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = request(h.List, http.MethodGet, "/jobs?status=archived", "", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = request(h.Apply, http.MethodPost, "/jobs/"+id+"/apply", "", "w1", id)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(h.Apply, http.MethodPost, "/jobs/"+id+"/apply", "", "w1", id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = request(h.Get, http.MethodGet, "/jobs/"+id, "", "", id)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Job jobs.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Job.Applicants, 1)
	assert.Equal(t, "w1", got.Job.Applicants[0].UserID)
}

func TestJobErrors(t *testing.T) {
	h := jobs.NewHandler(memory.New())

	rec := request(h.Create, http.MethodPost, "/jobs", `{"title":"x"}`, "biz1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = request(h.Create, http.MethodPost, "/jobs", `{}`, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(h.Get, http.MethodGet, "/jobs/nope", "", "", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = request(h.Apply, http.MethodPost, "/jobs/nope/apply", "", "w1", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
