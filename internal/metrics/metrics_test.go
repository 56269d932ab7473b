package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordIngest(t *testing.T) {
	before := testutil.ToFloat64(IngestArticlesTotal.WithLabelValues("created"))
	beforeRuns := testutil.ToFloat64(IngestTotal.WithLabelValues(ResultSuccess))

	RecordIngest(ResultSuccess, 3, 1, 2, 0.1)

	assert.Equal(t, before+3, testutil.ToFloat64(IngestArticlesTotal.WithLabelValues("created")))
	assert.Equal(t, beforeRuns+1, testutil.ToFloat64(IngestTotal.WithLabelValues(ResultSuccess)))
}

func TestRecordProbe(t *testing.T) {
	before := testutil.ToFloat64(ProbeTotal.WithLabelValues("ipfs.io", ResultFailure))
	RecordProbe("ipfs.io", errors.New("timeout"))
	assert.Equal(t, before+1, testutil.ToFloat64(ProbeTotal.WithLabelValues("ipfs.io", ResultFailure)))
}

func TestRecordPublishStage(t *testing.T) {
	before := testutil.ToFloat64(PublishTotal.WithLabelValues("render", ResultSuccess))
	RecordPublishStage("render", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(PublishTotal.WithLabelValues("render", ResultSuccess)))
}
