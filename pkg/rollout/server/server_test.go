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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/YARL-project/YARL/pkg/envs"
	"github.com/YARL-project/YARL/pkg/policy"
	"github.com/YARL-project/YARL/pkg/rollout"
	"github.com/YARL-project/YARL/pkg/sample"
	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

// loopEnv walks an endless two-feature trajectory with reward 1 per step.
type loopEnv struct {
	steps int
}

func (e *loopEnv) Reset() ([]float64, error) {
	e.steps = 0
	return []float64{0, 0}, nil
}

func (e *loopEnv) Step(int) (envs.StepResult, error) {
	e.steps++
	return envs.StepResult{State: []float64{float64(e.steps), 1}, Reward: 1}, nil
}

type fixedSource struct{}

func (fixedSource) Actions(_ context.Context, states [][]float64, _ bool) ([]int, error) {
	return make([]int, len(states)), nil
}

type failingSource struct{}

func (failingSource) Actions(context.Context, [][]float64, bool) ([]int, error) {
	return nil, errutil.Error{Code: errutil.PolicyBackendError, Msg: "policy service down"}
}

func newTestServer(t *testing.T, cfg rollout.Config, source policy.Source) *httptest.Server {
	t.Helper()
	pool, err := envs.NewPool(logr.Discard(), func(int) (envs.Environment, error) {
		return &loopEnv{}, nil
	}, cfg.NumEnvs, 0)
	require.NoError(t, err)
	worker, err := rollout.NewWorker(cfg, pool, source, nil, clocktesting.NewFakeClock(time.Unix(1700000000, 0)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = worker.Close() })

	ts := httptest.NewServer(NewServer(logr.Discard(), worker).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func testServerConfig() rollout.Config {
	return rollout.Config{WorkerID: "worker-test", NumEnvs: 2}
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCollectEndpoint(t *testing.T) {
	ts := newTestServer(t, testServerConfig(), fixedSource{})

	resp, err := http.Post(ts.URL+"/v1/collect", "application/json", strings.NewReader(`{"num_timesteps": 4}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var envelope sample.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, 4, envelope.Len())
	assert.Equal(t, "worker-test", envelope.WorkerID)
}

func TestCollectEndpointRejectsUnboundedRequest(t *testing.T) {
	ts := newTestServer(t, testServerConfig(), fixedSource{})

	resp, err := http.Post(ts.URL+"/v1/collect", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errutil.BadRequest, decodeError(t, resp).Code)
}

func TestCollectEndpointRejectsBadJSON(t *testing.T) {
	ts := newTestServer(t, testServerConfig(), fixedSource{})

	resp, err := http.Post(ts.URL+"/v1/collect", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCollectEndpointMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, testServerConfig(), fixedSource{})

	resp, err := http.Get(ts.URL + "/v1/collect")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCollectEndpointBackendFailure(t *testing.T) {
	ts := newTestServer(t, testServerConfig(), failingSource{})

	resp, err := http.Post(ts.URL+"/v1/collect", "application/json", strings.NewReader(`{"num_timesteps": 2}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, errutil.PolicyBackendError, decodeError(t, resp).Code)
}

func TestCollectSampleEndpoint(t *testing.T) {
	cfg := testServerConfig()
	cfg.WorkerSampleSize = 6
	ts := newTestServer(t, cfg, fixedSource{})

	resp, err := http.Post(ts.URL+"/v1/collect/sample", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var envelope sample.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, 6, envelope.Len())
}

func TestStatisticsEndpoint(t *testing.T) {
	ts := newTestServer(t, testServerConfig(), fixedSource{})

	resp, err := http.Post(ts.URL+"/v1/collect", "application/json", strings.NewReader(`{"num_timesteps": 4}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/statistics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats rollout.WorkloadStatistics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 4, stats.WorkerSteps)
}

func TestWeightsEndpoint(t *testing.T) {
	lin, err := policy.NewLinearPolicy(2, 2, 0.9)
	require.NoError(t, err)
	ts := newTestServer(t, testServerConfig(), lin)

	payload, err := policy.EncodeLinearWeights(9, [][]float64{{1, 0}, {0, 1}}, []float64{0, 0})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/v1/weights", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int64(9), lin.Version())
}

func TestWeightsEndpointRejectsPlainSource(t *testing.T) {
	ts := newTestServer(t, testServerConfig(), fixedSource{})

	resp, err := http.Post(ts.URL+"/v1/weights", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errutil.BadRequest, decodeError(t, resp).Code)
}

func TestResampleEndpoint(t *testing.T) {
	cfg := testServerConfig()
	cfg.Exploration = rollout.ExplorationConfig{Enabled: true, Epsilon: 0.8, MinEpsilon: 0.2, NumActions: 2}
	ts := newTestServer(t, cfg, fixedSource{})

	resp, err := http.Post(ts.URL+"/v1/exploration/resample", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.GreaterOrEqual(t, body["epsilon"], 0.2)
	assert.Less(t, body["epsilon"], 0.8)
}

func TestResampleEndpointDisabled(t *testing.T) {
	ts := newTestServer(t, testServerConfig(), fixedSource{})

	resp, err := http.Post(ts.URL+"/v1/exploration/resample", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthzEndpoint(t *testing.T) {
	ts := newTestServer(t, testServerConfig(), fixedSource{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
