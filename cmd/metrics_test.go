package cmd

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"yieldctl/pkg/metrics"
	"yieldctl/pkg/store"
)

func TestRecordTransition(t *testing.T) {
	rejected := metrics.OperationsSettled.WithLabelValues(string(store.PhaseRejected))
	before := testutil.ToFloat64(rejected)

	recordTransition(store.OperationStatus{Name: "deposit:mainnet:v", Phase: store.PhasePending, Loading: true})
	assert.Equal(t, before, testutil.ToFloat64(rejected))

	recordTransition(store.OperationStatus{Name: "deposit:mainnet:v", Phase: store.PhaseRejected})
	assert.Equal(t, before+1, testutil.ToFloat64(rejected))
}
