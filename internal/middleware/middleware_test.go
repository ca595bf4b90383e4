package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/raffle-backend/internal/config"
	"github.com/javajoker/raffle-backend/internal/i18n"
	"github.com/javajoker/raffle-backend/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := i18n.Initialize("es"); err != nil {
		panic(err)
	}
	utils.SetJWTSecret("middleware-test-secret")
}

func serve(r *gin.Engine, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestResolveLanguage(t *testing.T) {
	cases := map[string]string{
		"":                        "es",
		"en":                      "en",
		"en-US,en;q=0.9":          "en",
		"es-MX,es;q=0.9,en;q=0.8": "es",
		"fr-FR, en;q=0.5":         "en",
		"de, *":                   "es",
		"EN_gb":                   "en",
	}
	for header, want := range cases {
		assert.Equal(t, want, resolveLanguage(header), header)
	}
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.Use(I18nMiddleware(), AuthRequired(), OperatorRequired("operator"))
	r.GET("/", func(c *gin.Context) {
		subject, _ := utils.GetSubjectFromContext(c)
		c.String(http.StatusOK, subject)
	})

	w := serve(r, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Se requiere autenticación")

	w = serve(r, http.Header{"Authorization": {"Token abc"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := utils.GenerateJWT("op-1", "", "operator", -time.Minute)
	require.NoError(t, err)
	w = serve(r, http.Header{"Authorization": {"Bearer " + expired}, "Accept-Language": {"en"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication token expired or invalid")

	viewer, err := utils.GenerateJWT("viewer-1", "", "viewer", time.Hour)
	require.NoError(t, err)
	w = serve(r, http.Header{"Authorization": {"Bearer " + viewer}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	operator, err := utils.GenerateJWT("op-1", "Front Desk", "operator", time.Hour)
	require.NoError(t, err)
	w = serve(r, http.Header{"Authorization": {"bearer " + operator}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "op-1", w.Body.String())
}

func TestOperatorRequiredWithoutRole(t *testing.T) {
	r := gin.New()
	r.Use(AuthRequired(), OperatorRequired(""))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	token, err := utils.GenerateJWT("anyone", "", "", time.Hour)
	require.NoError(t, err)
	w := serve(r, http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequestLogger())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := serve(r, http.Header{"X-Request-Id": {"abc-123"}})
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc-123", w.Body.String())

	w = serve(r, nil)
	assert.Len(t, w.Header().Get("X-Request-ID"), 16)
	assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	defer limiter.Stop()

	r := gin.New()
	r.Use(I18nMiddleware(), limiter.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, nil).Code)

	w := serve(r, http.Header{"Accept-Language": {"en"}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	defer limiter.Stop()

	limiter.getVisitor("10.0.0.1")
	limiter.evict(time.Now().Add(visitorTTL + time.Second))

	limiter.mtx.Lock()
	defer limiter.mtx.Unlock()
	assert.Empty(t, limiter.visitors)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"https://rifas.example"}}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.Header{"Origin": {"https://rifas.example"}})
	assert.Equal(t, "https://rifas.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.Header{"Origin": {"https://evil.example"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimiterStopEndsCleanup(t *testing.T) {
	limiter := NewRateLimiter(1, 1)

	stopped := make(chan struct{})
	go func() {
		limiter.Stop()
		limiter.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	select {
	case <-limiter.done:
	default:
		t.Fatal("cleanup goroutine still running")
	}
}
