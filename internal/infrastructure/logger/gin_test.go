package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	return router, recorded
}

func findEntry(logs []observer.LoggedEntry, msg string) *observer.LoggedEntry {
	for i := range logs {
		if logs[i].Message == msg {
			return &logs[i]
		}
	}
	return nil
}

func TestGinMiddleware_LogsRequest(t *testing.T) {
	router, recorded := newObservedRouter(t)
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test?limit=5", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	entry := findEntry(recorded.All(), "http request")
	require.NotNil(t, entry)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/test", fields["path"])
	assert.Equal(t, "limit=5", fields["query"])
}

func TestGinMiddleware_StatusDrivesLevel(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"2xx logs at info", http.StatusOK, zapcore.InfoLevel},
		{"4xx logs at warn", http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{"5xx logs at error", http.StatusBadGateway, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, recorded := newObservedRouter(t)
			router.GET("/status", func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

			entry := findEntry(recorded.All(), "http request")
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
		})
	}
}

func TestGinMiddleware_InstallsContextLogger(t *testing.T) {
	router, _ := newObservedRouter(t)

	var fromCtx *zap.Logger
	router.GET("/test", func(c *gin.Context) {
		fromCtx = FromContext(c.Request.Context(), nil)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.NotNil(t, fromCtx)
	assert.NotSame(t, zap.NewNop(), fromCtx)
}

func TestGinMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.InfoLevel)
	router := gin.New()
	// simulates the RequestID middleware that runs before logging
	router.Use(func(c *gin.Context) {
		c.Set(requestIDContextKey, "req-abc")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))

	var ctxRequestID string
	router.GET("/test", func(c *gin.Context) {
		ctxRequestID = RequestIDFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, "req-abc", ctxRequestID)

	entry := findEntry(recorded.All(), "http request")
	require.NotNil(t, entry)
	assert.Equal(t, "req-abc", entry.ContextMap()["request_id"])
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	entry := findEntry(recorded.All(), "panic recovered")
	require.NotNil(t, entry)
	assert.Equal(t, "boom", entry.ContextMap()["panic"])
	assert.Equal(t, "/panic", entry.ContextMap()["path"])
}

func TestRecovery_UsesRequestScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(requestIDContextKey, "req-panic")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.Use(Recovery(zap.NewNop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	entry := findEntry(recorded.All(), "panic recovered")
	require.NotNil(t, entry)
	assert.Equal(t, "req-panic", entry.ContextMap()["request_id"])
}
