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

package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YARL-project/YARL/pkg/preprocess"
	"github.com/YARL-project/YARL/pkg/rollout"
	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`workerId: w-1
numEnvs: 4
nStep: 3
codec: lz4
exploration:
  enabled: true
  epsilon: 0.6
  minEpsilon: 0.1
  numActions: 2
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "w-1", cfg.WorkerID)
	assert.Equal(t, 4, cfg.NumEnvs)
	assert.Equal(t, 3, cfg.NStep)
	assert.Equal(t, "lz4", cfg.Codec)
	assert.True(t, cfg.Exploration.Enabled)
	assert.Equal(t, 0.6, cfg.Exploration.Epsilon)
	defaulted := cfg.WithDefaults()
	require.NoError(t, defaulted.Validate())
}

func TestLoadConfigEmptyPathRunsOnDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, rollout.Config{}, cfg)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errutil.BadConfiguration, errutil.CanonicalCode(err))
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("numEnvs: [not an int"), 0o600))

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Equal(t, errutil.BadConfiguration, errutil.CanonicalCode(err))
}

func TestBuildEnvironmentsCartpole(t *testing.T) {
	cfg := rollout.Config{WorkerID: "w", NumEnvs: 3}.WithDefaults()

	pool, space, err := buildEnvironments(logr.Discard(), cartpoleEnvironment, cfg)
	require.NoError(t, err)
	defer func() { _ = pool.Close() }()

	assert.Equal(t, 3, pool.Slots())
	assert.Equal(t, 4, space.ObservationSize())
	assert.Equal(t, 2, space.NumActions())
}

func TestBuildEnvironmentsUnknownName(t *testing.T) {
	cfg := rollout.Config{WorkerID: "w"}.WithDefaults()

	_, _, err := buildEnvironments(logr.Discard(), "pong", cfg)
	require.Error(t, err)
	assert.Equal(t, errutil.BadConfiguration, errutil.CanonicalCode(err))
}

func TestProcessedWidth(t *testing.T) {
	specs := []preprocess.Spec{{
		Type:       preprocess.FrameStackType,
		Parameters: json.RawMessage(`{"depth": 3}`),
	}}

	width, err := processedWidth(specs, 4)
	require.NoError(t, err)
	assert.Equal(t, 12, width)

	width, err = processedWidth(nil, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, width)
}
