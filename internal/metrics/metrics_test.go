package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHTTP(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics-test", "200"))

	ObserveHTTP(http.MethodGet, "/metrics-test", http.StatusOK, 25*time.Millisecond)
	ObserveHTTP(http.MethodGet, "/metrics-test", http.StatusOK, 40*time.Millisecond)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics-test", "200"))
	assert.Equal(t, before+2, after)
}

func TestObserveRanking(t *testing.T) {
	before := testutil.ToFloat64(RankingsTotal.WithLabelValues(OutcomeFallback))

	ObserveRanking(OutcomeFallback)

	assert.Equal(t, before+1, testutil.ToFloat64(RankingsTotal.WithLabelValues(OutcomeFallback)))
}
