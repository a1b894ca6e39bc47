package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCheck(status Status, msg string) CheckFunc {
	return func(ctx context.Context) Check {
		return Check{Status: status, Message: msg, LastChecked: time.Now()}
	}
}

func newBareChecker() *Checker {
	return &Checker{checks: make(map[string]CheckFunc), ttl: 5 * time.Second}
}

func TestOverallStatusIsWorstCheck(t *testing.T) {
	c := newBareChecker()
	c.Register("a", staticCheck(StatusHealthy, "fine"))
	c.Register("b", staticCheck(StatusDegraded, "meh"))

	report := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("c", staticCheck(StatusUnhealthy, "broken"))
	c.cache = nil
	report = c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Len(t, report.Checks, 3)
}

func TestCheckCachesReport(t *testing.T) {
	calls := 0
	c := newBareChecker()
	c.Register("counted", func(ctx context.Context) Check {
		calls++
		return Check{Status: StatusHealthy}
	})

	c.Check(context.Background())
	c.Check(context.Background())
	assert.Equal(t, 1, calls, "second call within ttl must hit the cache")
}

func TestHandlerStatusCodes(t *testing.T) {
	c := newBareChecker()
	c.Register("ok", staticCheck(StatusHealthy, "fine"))

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusHealthy, report.Status)

	c2 := newBareChecker()
	c2.Register("bad", staticCheck(StatusUnhealthy, "broken"))
	rec = httptest.NewRecorder()
	c2.Handler()(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 503, rec.Code)
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest("GET", "/livez", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
