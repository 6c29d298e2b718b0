package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndSizes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.POST("/recordings/:id", func(c *gin.Context) { c.String(http.StatusCreated, "stored") })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/recordings/:id", "201"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/recordings/abc", strings.NewReader("audio-bytes")))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST -> %d", w.Code)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/recordings/:id", "201")); got != baseOK+1 {
		t.Fatalf("route counter = %v; want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404")); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, baseMiss+1)
	}
	if n := testutil.CollectAndCount(httpReqSize); n == 0 {
		t.Fatalf("request size histogram not observed")
	}
	if n := testutil.CollectAndCount(httpLat); n == 0 {
		t.Fatalf("latency histogram not observed")
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight should return to 0, got %v", got)
	}
}
