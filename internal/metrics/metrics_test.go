// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Run(OutcomeVerified)
	r.Run(OutcomeVerified)
	r.Run(OutcomeCached)
	r.CacheLookup(true, nil)
	r.CacheLookup(false, nil)
	r.CacheLookup(true, errors.New("disk"))
	r.QueriesFailed(2)
	r.QueriesFailed(0)
	r.Verdict("supported")
	r.Request("/api/verify", 429)
	r.Stage("retrieval", 300*time.Millisecond, nil)
	r.Stage("retrieval", time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues(OutcomeVerified)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues(OutcomeCached)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.QueryFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Verdicts.WithLabelValues("supported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("/api/verify", "429")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.StageDuration))

	n, err := testutil.GatherAndCount(reg, "verity_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Run(OutcomeFailed)
		r.CacheLookup(true, nil)
		r.Stage("scoring", time.Second, nil)
		r.QueriesFailed(1)
		r.Verdict("supported")
		r.Request("/api/health", 200)
	})
}
