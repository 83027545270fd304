package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"call-screener/internal/behavior"
	"call-screener/internal/config"
	"call-screener/internal/models"
	"call-screener/internal/phone"
)

// MockScreener is a mock implementation of the screening engine
type MockScreener struct {
	mock.Mock
}

func (m *MockScreener) Screen(ctx context.Context, raw *string) models.Decision {
	args := m.Called(ctx, raw)
	return args.Get(0).(models.Decision)
}

// MockCallTracker is a mock implementation of the ring tracker
type MockCallTracker struct {
	mock.Mock
}

func (m *MockCallTracker) RingStarted(hash string) {
	m.Called(hash)
}

func (m *MockCallTracker) Answered() {
	m.Called()
}

func (m *MockCallTracker) Ended(ctx context.Context) (behavior.RingOutcome, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(behavior.RingOutcome), args.Bool(1), args.Error(2)
}

func testHasher() *phone.Hasher {
	return phone.NewHasher(&config.PhoneConfig{HomePrefix: "+91", Salt: "test-salt"})
}

func setupScreeningHandler() (*gin.Engine, *MockScreener, *MockCallTracker) {
	gin.SetMode(gin.TestMode)
	screener := &MockScreener{}
	tracker := &MockCallTracker{}
	handler := NewScreeningHandler(screener, tracker, testHasher(), nil, zap.NewNop())

	router := gin.New()
	router.POST("/api/v1/screen", handler.Screen)
	router.POST("/api/v1/calls/ring-start", handler.RingStart)
	router.POST("/api/v1/calls/answered", handler.Answered)
	router.POST("/api/v1/calls/ended", handler.Ended)
	return router, screener, tracker
}

func doJSON(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestScreen(t *testing.T) {
	router, screener, _ := setupScreeningHandler()

	screener.On("Screen", mock.Anything, mock.MatchedBy(func(raw *string) bool {
		return raw != nil && *raw == "+919876543210"
	})).Return(models.Silence(0.95, "scam", models.SourceRemote))

	w := doJSON(router, http.MethodPost, "/api/v1/screen", gin.H{"number": "+919876543210"})
	assert.Equal(t, http.StatusOK, w.Code)

	decision := decode(t, w)["decision"].(map[string]interface{})
	assert.Equal(t, "silence", decision["action"])
	assert.Equal(t, "remote", decision["source"])
	assert.Equal(t, "scam", decision["category"])
	assert.Equal(t, 0.95, decision["score"])

	screener.AssertExpectations(t)
}

func TestScreenHiddenNumber(t *testing.T) {
	router, screener, _ := setupScreeningHandler()
	screener.On("Screen", mock.Anything, (*string)(nil)).Return(models.Silence(0.5, "", models.SourceHidden))

	w := doJSON(router, http.MethodPost, "/api/v1/screen", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hidden", decode(t, w)["decision"].(map[string]interface{})["source"])

	w = doJSON(router, http.MethodPost, "/api/v1/screen", gin.H{})
	assert.Equal(t, http.StatusOK, w.Code)
	screener.AssertNumberOfCalls(t, "Screen", 2)
}

func TestScreenInvalidBody(t *testing.T) {
	router, screener, _ := setupScreeningHandler()

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/screen", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	screener.AssertNotCalled(t, "Screen", mock.Anything, mock.Anything)
}

func TestRingLifecycle(t *testing.T) {
	router, _, tracker := setupScreeningHandler()
	hash, ok := testHasher().Hash("+919876543210")
	require.True(t, ok)

	tracker.On("RingStarted", hash).Once()
	tracker.On("RingStarted", "").Once()
	tracker.On("Answered").Once()
	tracker.On("Ended", mock.Anything).
		Return(behavior.RingOutcome{NumberHash: hash, Duration: 3 * time.Second, IsShort: true}, true, nil).Once()
	tracker.On("Ended", mock.Anything).Return(behavior.RingOutcome{}, false, nil).Once()

	w := doJSON(router, http.MethodPost, "/api/v1/calls/ring-start", gin.H{"number": "+919876543210"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = doJSON(router, http.MethodPost, "/api/v1/calls/ring-start", gin.H{})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/calls/answered", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/calls/ended", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, true, response["short_ring"])
	assert.Equal(t, float64(3000), response["duration_ms"])

	w = doJSON(router, http.MethodPost, "/api/v1/calls/ended", nil)
	assert.Equal(t, false, decode(t, w)["tracked"])

	tracker.AssertExpectations(t)
}

func TestRingEndedStoreFailure(t *testing.T) {
	router, _, tracker := setupScreeningHandler()
	tracker.On("Ended", mock.Anything).
		Return(behavior.RingOutcome{IsShort: true}, true, errors.New("redis down"))

	w := doJSON(router, http.MethodPost, "/api/v1/calls/ended", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w), "error")
}
