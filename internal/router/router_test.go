package router

import (
	"net/http"
	"testing"

	"github.com/ashwinyue/next-linker/internal/config"
	"github.com/ashwinyue/next-linker/internal/handler"
	"github.com/ashwinyue/next-linker/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, err := config.Load("")
	require.NoError(t, err)
	dataset := testutil.NovelDataset()

	r := SetupRouter(&handler.Handlers{
		Evaluation: handler.NewEvaluationHandler(nil, nil, dataset),
		System:     handler.NewSystemHandler(cfg, dataset),
	})

	w := testutil.PerformRequest(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.PerformRequest(t, r, http.MethodGet, "/api/v1/system/info", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Units    int    `json:"units"`
			Resolver string `json:"resolver"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, w, &resp)
	assert.Equal(t, 2, resp.Data.Units)
	assert.Equal(t, "rule", resp.Data.Resolver)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
