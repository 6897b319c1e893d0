package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rgehrsitz/nest/internal/cache"
	"rgehrsitz/nest/internal/metrics"
	"rgehrsitz/nest/internal/rules"
	"rgehrsitz/nest/internal/runtime"
	"rgehrsitz/nest/internal/store"
)

func testRules(t *testing.T, calls *int) []rules.Rule {
	t.Helper()
	p := rules.NewProgram("test")
	p.Add(p.Rule().
		Name("week-one").
		Slot(rules.ScreenLearning, rules.SlotHeader).
		When(rules.InScope(rules.ScopePostpartum), rules.Postpartum.Week().Eq(1)).
		Show(rules.Content{
			Template: rules.TemplateCelebration,
			Props: rules.Props{
				"title": rules.Literal("Week 1"),
				"message": rules.AIText(rules.AITextConfig{
					Key: func(*rules.RuleContext) string { return "week-one" },
					TTL: "1h",
					Call: func(rc *rules.RuleContext) rules.AICall {
						return rules.NewAICall(func(context.Context) (string, error) {
							*calls++
							return "Happy week one, " + rc.Baby.Name, nil
						}, func(s string) any { return s })
					},
				}),
			},
		}).
		Priority(50).
		MustBuild())
	p.Add(p.Rule().
		Name("day-seven").
		Slot(rules.ScreenLearning, rules.SlotHeader).
		When(rules.InScope(rules.ScopePostpartum), rules.Postpartum.Day().Eq(7)).
		Show(rules.Content{Template: rules.TemplateCelebration, Props: rules.Static(map[string]any{"title": "One week"})}).
		Priority(100).
		MustBuild())
	p.Add(p.Rule().
		Name("feeding").
		Slot(rules.ScreenActivity, rules.SlotBanner).
		When(rules.Stale("feeding", 180)).
		Show(rules.Content{Template: rules.TemplateGoTo, Props: rules.Static(map[string]any{"label": "Log a feeding"})}).
		MustBuild())
	return p.Build()
}

func newTestRouter(t *testing.T, src CacheSource) (http.Handler, *int) {
	t.Helper()
	calls := 0
	h := NewHandler(testRules(t, &calls), runtime.New(), src, "test")
	return NewRouter(h), &calls
}

func get(t *testing.T, router http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

var babyOne = map[string]string{HeaderBabyID: "baby-1", HeaderFamilyID: "fam-1", HeaderUserID: "user-1"}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})

	rec := get(t, router, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 3, resp.Rules)
}

func TestSlot_PicksHighestPriority(t *testing.T) {
	router, calls := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})

	rec := get(t, router, "/v1/slots/Learning/Header?scope=Postpartum&ppDay=7&ppWeek=1", babyOne)
	require.Equal(t, http.StatusOK, rec.Code)

	var sel runtime.Selection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sel))
	assert.Equal(t, rules.TemplateCelebration, sel.Template)
	assert.Equal(t, "One week", sel.Props["title"])
	assert.Zero(t, *calls, "losing rule's props are not resolved")
}

func TestSlot_ResolvesAndCachesAIProps(t *testing.T) {
	router, calls := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})
	path := "/v1/slots/Learning/Header?scope=Postpartum&ppDay=9&ppWeek=1&baby.name=Ada"

	for i := 0; i < 2; i++ {
		rec := get(t, router, path, babyOne)
		require.Equal(t, http.StatusOK, rec.Code)
		var sel runtime.Selection
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&sel))
		assert.Equal(t, "Happy week one, Ada", sel.Props["message"])
	}
	assert.Equal(t, 1, *calls)

	other := map[string]string{HeaderBabyID: "baby-2"}
	rec := get(t, router, path, other)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, *calls, "caches are scoped per baby")
}

func TestSlot_NoMatchIsNoContent(t *testing.T) {
	router, _ := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})

	rec := get(t, router, "/v1/slots/Home/Footer?scope=TTC", babyOne)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestSlot_MissingBabyHeader(t *testing.T) {
	router, _ := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})

	rec := get(t, router, "/v1/slots/Learning/Header?scope=Postpartum", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var p Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Contains(t, p.Detail, HeaderBabyID)
	assert.Equal(t, "/v1/slots/Learning/Header", p.Instance)
}

func TestSlot_InvalidQuery(t *testing.T) {
	router, _ := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})

	for _, q := range []string{"ppDay=seven", "progress.hospitalBag=lots", "stale.feeding=yesterday", "baby.ageDays=x", "now=today"} {
		rec := get(t, router, "/v1/slots/Learning/Header?"+q, babyOne)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestSlot_StaleFromQuery(t *testing.T) {
	router, _ := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	q := url.Values{}
	q.Set("now", now.Format(time.RFC3339))
	q.Set("stale.feeding", "1714557600000") // 10:00 UTC, two hours earlier
	rec := get(t, router, "/v1/slots/Activity/Banner?"+q.Encode(), babyOne)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	q.Set("stale.feeding", "1714550400000") // 08:00 UTC
	rec = get(t, router, "/v1/slots/Activity/Banner?"+q.Encode(), babyOne)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSlotWithBody(t *testing.T) {
	router, _ := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})

	body := `{"scope": "Postpartum", "ppDay": 7, "ppWeek": 1}`
	req := httptest.NewRequest(http.MethodPost, "/v1/slots/Learning/Header", strings.NewReader(body))
	req.Header.Set(HeaderBabyID, "baby-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "One week")

	req = httptest.NewRequest(http.MethodPost, "/v1/slots/Learning/Header", strings.NewReader("{"))
	req.Header.Set(HeaderBabyID, "baby-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSlotWithBody_PinsEvaluationTime(t *testing.T) {
	router, _ := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})
	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/slots/Activity/Banner", strings.NewReader(body))
		req.Header.Set(HeaderBabyID, "baby-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	// Last feeding at 10:00 UTC; the banner needs three hours.
	assert.Equal(t, http.StatusNoContent, post(`{"now": "2024-05-01T12:00:00Z", "stale": {"feeding": 1714557600000}}`))
	assert.Equal(t, http.StatusOK, post(`{"now": "2024-05-01T13:30:00Z", "stale": {"feeding": 1714557600000}}`))
}

func TestLoggingMiddleware_UnknownPathsShareOneRoute(t *testing.T) {
	router, _ := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})
	get(t, router, "/nope/0", nil)
	series := testutil.CollectAndCount(metrics.RequestDuration)

	for i := 1; i < 20; i++ {
		rec := get(t, router, "/nope/"+strconv.Itoa(i), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, series, testutil.CollectAndCount(metrics.RequestDuration))
}

func TestExplain_ListsMatchesInOrder(t *testing.T) {
	router, calls := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})

	rec := get(t, router, "/v1/explain/Learning/Header?scope=Postpartum&ppDay=7&ppWeek=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []MatchSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out, 2)
	assert.Equal(t, "day-seven", out[0].Name)
	assert.Equal(t, "week-one", out[1].Name)
	assert.Zero(t, *calls)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, SharedCache{Cache: cache.NewMemory()})
	get(t, router, "/v1/slots/Learning/Header?scope=Postpartum&ppDay=7&ppWeek=1", babyOne)

	rec := get(t, router, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nest_slot_picks_total")
}

func TestDBCaches_ScopedAndBounded(t *testing.T) {
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "nest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg, err := NewDBCaches(db, 2)
	require.NoError(t, err)

	a := reg.For(Identity{BabyID: "a", FamilyID: "f", UserID: "u"})
	assert.Same(t, a, reg.For(Identity{BabyID: "a", FamilyID: "f", UserID: "u"}))

	ctx := context.Background()
	a.Set(ctx, "k", "for a", time.Hour)
	_, ok := reg.For(Identity{BabyID: "b"}).Get(ctx, "k")
	assert.False(t, ok)

	reg.For(Identity{BabyID: "c"})
	assert.Equal(t, 2, reg.Len())

	entry, ok := reg.For(Identity{BabyID: "a", FamilyID: "f", UserID: "u"}).Get(ctx, "k")
	require.True(t, ok, "evicted caches are rebuilt over the same rows")
	assert.Equal(t, "for a", entry.Value)
}

func TestSlot_WithDBCaches(t *testing.T) {
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "nest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	reg, err := NewDBCaches(db, 8)
	require.NoError(t, err)

	router, calls := newTestRouter(t, reg)
	path := "/v1/slots/Learning/Header?scope=Postpartum&ppDay=10&ppWeek=1&baby.name=Bo"
	for i := 0; i < 2; i++ {
		rec := get(t, router, path, babyOne)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Happy week one, Bo")
	}
	assert.Equal(t, 1, *calls)
}
