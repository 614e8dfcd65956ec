package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	before := testutil.ToFloat64(Answers.WithLabelValues("chat", "computed"))
	CountAnswer("chat", "computed")
	assert.Equal(t, before+1, testutil.ToFloat64(Answers.WithLabelValues("chat", "computed")))

	ObserveRequest("", "GET", 404, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(HTTPRequests.WithLabelValues("unmatched", "GET", "404")))

	ObserveAnalysis(100, 20*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(AnalysisDuration))
}
