package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRecoveredHTTPLogTurnsPanicInto500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveredHTTPLog())
	router.GET("/boom", func(ctx *gin.Context) {
		panic("boom")
	})
	router.GET("/ok", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestRequestHeaderFilter(t *testing.T) {
	filtered := requestHeaderFilter(map[string][]string{
		"Authorization": {"Bearer x"},
		"Accept":        {"a", "b"},
	})
	assert.Equal(t, map[string]string{"accept": "a;b"}, filtered)
}
