/*
Copyright 2025 The YARL Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCollect(t *testing.T) {
	reg := prom.NewRegistry()
	m, err := New("test", reg, Options{})
	require.NoError(t, err)

	m.RecordCollect("w0", 8, 16, 6, 2*time.Second)
	m.RecordCollect("w0", 4, 8, 4, time.Second)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.stepsTotal.WithLabelValues("w0")))
	assert.Equal(t, 24.0, testutil.ToFloat64(m.envFramesTotal.WithLabelValues("w0")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "test_rollout_batch_transitions"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "test_rollout_collect_duration_seconds"))
}

func TestRecordEpisode(t *testing.T) {
	reg := prom.NewRegistry()
	m, err := New("test", reg, Options{})
	require.NoError(t, err)

	m.RecordEpisode("w0", "env_0", "terminal", 120, 120)
	m.RecordEpisode("w0", "env_0", "terminal", 80, 80)
	m.RecordEpisode("w0", "env_1", "cutoff", 500, 500)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.episodesTotal.WithLabelValues("w0", "terminal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.episodesTotal.WithLabelValues("w0", "cutoff")))
	assert.Equal(t, 80.0, testutil.ToFloat64(m.lastEpisodeRewardVec.WithLabelValues("w0", "env_0")))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.lastEpisodeRewardVec.WithLabelValues("w0", "env_1")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "test_rollout_episode_reward"))
}

func TestRecordGaugesAndCounters(t *testing.T) {
	reg := prom.NewRegistry()
	m, err := New("", reg, Options{})
	require.NoError(t, err)

	m.RecordEnvFailure("w0", "env_3")
	m.RecordEnvFailure("w0", "env_3")
	m.RecordWeightSync("w0")
	m.RecordExplorationRate("w0", 0.25)

	// An empty namespace falls back to the project default.
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "yarl_rollout_env_failures_total"))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.envFailuresTotal.WithLabelValues("w0", "env_3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.weightSyncsTotal.WithLabelValues("w0")))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.explorationRate.WithLabelValues("w0")))
}

func TestNilMetricsRecordSafely(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordCollect("w0", 1, 1, 1, time.Second)
		m.RecordEpisode("w0", "env_0", "terminal", 1, 1)
		m.RecordEnvFailure("w0", "env_0")
		m.RecordWeightSync("w0")
		m.RecordExplorationRate("w0", 0.5)
	})
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := New("test", reg, Options{})
	require.NoError(t, err)
	second, err := New("test", reg, Options{})
	require.NoError(t, err)

	first.RecordWeightSync("w0")
	second.RecordWeightSync("w0")

	// Both handles share the collectors already held by the registry.
	assert.Equal(t, 2.0, testutil.ToFloat64(second.weightSyncsTotal.WithLabelValues("w0")))
}
