package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/twinlog/internal/analysis"
	"github.com/twinlog/internal/db"
	"github.com/twinlog/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type offlineClassifier struct{}

func (offlineClassifier) Classify(context.Context, []analysis.ClassifierItem, string) (string, error) {
	return "", analysis.ErrClassifierUnavailable
}

type apiFixture struct {
	engine *gin.Engine
	db     *gorm.DB
	tokens *service.TokenService
	user   *db.User
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	user, err := db.CreateUser(gdb, "alice", "secret-pass")
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	store := service.NewHistoryService(gdb)
	tokens := service.NewTokenService("test-secret", time.Hour)
	api := NewAPI(Dependencies{
		DB:       gdb,
		History:  store,
		Analysis: service.NewHistoryAnalysisService(store, offlineClassifier{}, zerolog.Nop(), service.AnalysisOptions{Location: time.UTC}),
		System:   service.NewSystemSettingService(gdb),
		Tokens:   tokens,
		Logger:   zerolog.Nop(),
	})

	engine := gin.New()
	engine.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-session-secret"))))
	engine.POST("/login", api.Login)
	secured := engine.Group("/api", api.AuthRequired())
	secured.GET("/me", api.Me)
	secured.POST("/history/sync", api.SyncHistory)
	secured.GET("/history", api.ListHistory)
	secured.DELETE("/history", api.DeleteHistory)
	secured.GET("/history/analysis", api.GetAnalysis)
	secured.GET("/history/analysis/summary", api.GetAnalysisSummary)
	settings := secured.Group("/settings", api.AdminRequired())
	settings.GET("/ai", api.GetAISettings)
	settings.PUT("/ai", api.UpdateAISettings)

	return &apiFixture{engine: engine, db: gdb, tokens: tokens, user: user}
}

func (f *apiFixture) bearer(t *testing.T) string {
	t.Helper()
	token, _, err := f.tokens.Issue(f.user.ID, f.user.Username)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	return "Bearer " + token
}

func (f *apiFixture) do(t *testing.T, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body failed: %v (%s)", err, w.Body.String())
	}
}

func TestAuthRequiredRejectsAnonymous(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.do(t, http.MethodGet, "/api/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/me", "Bearer not-a-token", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", w.Code)
	}

	w := f.do(t, http.MethodGet, "/api/me", f.bearer(t), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer token, got %d", w.Code)
	}
	var body struct {
		User struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	decodeBody(t, w, &body)
	if body.User.ID != f.user.ID {
		t.Fatalf("unexpected user id %d", body.User.ID)
	}
}

func TestLoginSetsSessionAndToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/login", "", credentialsRequest{Username: "alice", Password: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/login", "", credentialsRequest{Username: "alice", Password: "secret-pass"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, w, &body)
	if body.Token == "" {
		t.Fatalf("expected token in login response")
	}

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected session cookie")
	}
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected session cookie to authenticate, got %d", rec.Code)
	}
}

func TestAnalysisReturns404BeforeSync(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/history/analysis", f.bearer(t), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSyncValidation(t *testing.T) {
	f := newAPIFixture(t)
	auth := f.bearer(t)

	if w := f.do(t, http.MethodPost, "/api/history/sync", auth, historySyncRequest{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty payload, got %d", w.Code)
	}

	tooMany := historySyncRequest{Items: make([]historyItemRequest, maxSyncItems+1)}
	if w := f.do(t, http.MethodPost, "/api/history/sync", auth, tooMany); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestSyncThenAnalyze(t *testing.T) {
	f := newAPIFixture(t)
	auth := f.bearer(t)

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{"url": "https://github.com/golang/go", "title": "Go", "visitCount": 3, "lastVisitTime": "2024-05-06T09:00:00Z"},
			{"url": "https://www.youtube.com/watch?v=1", "title": "Talk", "visitCount": 1, "lastVisitTime": "2024-05-06T09:10:00Z"},
			{"url": "  ", "title": "blank", "visitCount": 1, "lastVisitTime": "2024-05-06T09:20:00Z"},
		},
	}
	w := f.do(t, http.MethodPost, "/api/history/sync", auth, payload)
	if w.Code != http.StatusOK {
		t.Fatalf("sync failed: %d %s", w.Code, w.Body.String())
	}
	var sync service.SyncResult
	decodeBody(t, w, &sync)
	if sync.Received != 3 || sync.Inserted != 2 || sync.Skipped != 1 {
		t.Fatalf("unexpected sync result: %+v", sync)
	}

	w = f.do(t, http.MethodGet, "/api/history?limit=1", auth, nil)
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, w, &list)
	if list.Count != 1 {
		t.Fatalf("expected limit to apply, got %d", list.Count)
	}

	w = f.do(t, http.MethodGet, "/api/history/analysis", auth, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("analysis failed: %d %s", w.Code, w.Body.String())
	}
	var first service.AnalysisResult
	decodeBody(t, w, &first)
	if first.FromCache {
		t.Fatalf("first analysis should not come from cache")
	}
	if first.Analysis.TopicCategories == nil || first.Analysis.TopicCategories.Source != analysis.SourceFallback {
		t.Fatalf("expected fallback topic analysis")
	}

	w = f.do(t, http.MethodGet, "/api/history/analysis", auth, nil)
	var second service.AnalysisResult
	decodeBody(t, w, &second)
	if !second.FromCache {
		t.Fatalf("second analysis should come from cache")
	}

	w = f.do(t, http.MethodGet, "/api/history/analysis/summary", auth, nil)
	var summary struct {
		HTML string `json:"html"`
	}
	decodeBody(t, w, &summary)
	if !strings.Contains(summary.HTML, "<p>") {
		t.Fatalf("expected rendered html, got %q", summary.HTML)
	}

	w = f.do(t, http.MethodDelete, "/api/history", auth, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/history/analysis", auth, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestAISettingsRequireAdmin(t *testing.T) {
	f := newAPIFixture(t)
	auth := f.bearer(t)

	w := f.do(t, http.MethodPut, "/api/settings/ai", auth, aiSettingsRequest{AIProvider: "deepseek", DeepSeekAPIKey: "sk-other-9999"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin update, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/settings/ai", auth, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin read, got %d", w.Code)
	}

	settings, err := service.NewSystemSettingService(f.db).GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	if settings.DeepSeekAPIKey != "" || settings.AIProvider == "deepseek" {
		t.Fatalf("settings must not change, got %+v", settings)
	}
}

func TestAISettingsAreMasked(t *testing.T) {
	f := newAPIFixture(t)
	if err := db.SetAdmin(f.db, f.user.Username, true); err != nil {
		t.Fatalf("set admin failed: %v", err)
	}
	auth := f.bearer(t)

	w := f.do(t, http.MethodPut, "/api/settings/ai", auth, aiSettingsRequest{AIProvider: "deepseek", DeepSeekAPIKey: "sk-deepseek-1234"})
	if w.Code != http.StatusOK {
		t.Fatalf("update failed: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/settings/ai", auth, nil)
	var body struct {
		Settings map[string]string `json:"settings"`
	}
	decodeBody(t, w, &body)
	if body.Settings["aiProvider"] != "deepseek" {
		t.Fatalf("unexpected provider %q", body.Settings["aiProvider"])
	}
	if got := body.Settings["deepseekApiKey"]; got != "************1234" {
		t.Fatalf("expected masked key, got %q", got)
	}

	if w := f.do(t, http.MethodPut, "/api/settings/ai", auth, aiSettingsRequest{AIProvider: "unknown"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown provider, got %d", w.Code)
	}
}
