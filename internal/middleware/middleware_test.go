package middleware

import (
	"net/http"
	"testing"

	"github.com/ashwinyue/next-linker/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), RecoveryMiddleware(), LoggingMiddleware())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/panic", func(c *gin.Context) { panic("index closed") })
	return r
}

func TestRequestIDMiddleware(t *testing.T) {
	w := testutil.PerformRequest(t, newEngine(), http.MethodGet, "/ok", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRecoveryMiddleware(t *testing.T) {
	w := testutil.PerformRequest(t, newEngine(), http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	testutil.DecodeJSON(t, w, &resp)
	assert.Equal(t, -1, resp.Code)
	assert.Equal(t, "internal server error", resp.Message)
}
