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

package rollout

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/YARL-project/YARL/pkg/codec"
	"github.com/YARL-project/YARL/pkg/preprocess"
	"github.com/YARL-project/YARL/pkg/sample"
	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

const (
	defaultWorkerSampleSize = 100
	defaultDiscount         = 0.99
)

// Config fixes a worker's behavior for its lifetime. Everything that
// mutates between collection calls lives in the session instead.
type Config struct {
	// WorkerID identifies this worker in envelopes, logs and metrics.
	WorkerID string `json:"workerId"`

	// NumEnvs is the number of environment slots stepped in lockstep.
	NumEnvs int `json:"numEnvs"`

	// NumBackgroundEnvs is the number of spare environments kept reset in
	// the background and rotated in when a slot finishes an episode.
	NumBackgroundEnvs int `json:"numBackgroundEnvs"`

	// WorkerSampleSize is the timestep budget used by CollectSample.
	WorkerSampleSize int `json:"workerSampleSize"`

	// EpisodeMaxTimesteps cuts an episode off after this many of its own
	// steps without marking the transition terminal. Zero disables the cap.
	EpisodeMaxTimesteps int `json:"episodeMaxTimesteps"`

	// NStep is the n-step return horizon. One leaves rewards untouched.
	NStep int `json:"nStep"`

	// Discount is the decay applied per step inside n-step windows.
	Discount float64 `json:"discount"`

	// PriorityWeights toggles TD-loss based sampling priorities. Without
	// it, every transition ships with weight one.
	PriorityWeights bool `json:"priorityWeights"`

	// WeightFloor is the additive lower bound on priority weights, keeping
	// every transition drawable downstream.
	WeightFloor float64 `json:"weightFloor"`

	// Codec names the state codec for outgoing envelopes, "none" or "lz4".
	Codec string `json:"codec"`

	// Frameskip is the number of environment frames consumed per step,
	// used only when reporting frame throughput.
	Frameskip int `json:"frameskip"`

	// Preprocessors describes the processor chain built once per slot.
	Preprocessors []preprocess.Spec `json:"preprocessors,omitempty"`

	// Exploration configures worker-side epsilon-greedy exploration.
	Exploration ExplorationConfig `json:"exploration"`

	// Seed drives the worker's own randomness (exploration draws).
	Seed int64 `json:"seed"`
}

// ExplorationConfig enables the worker-side epsilon-greedy layer wrapped
// around the action source.
type ExplorationConfig struct {
	Enabled bool `json:"enabled"`

	// Epsilon is the initial exploration rate and the upper bound for
	// resampled rates.
	Epsilon float64 `json:"epsilon"`

	// MinEpsilon is the lower bound for resampled rates.
	MinEpsilon float64 `json:"minEpsilon"`

	// NumActions sizes the uniform action draw on explored calls.
	NumActions int `json:"numActions"`
}

// WithDefaults fills unset fields with their defaults.
func (c Config) WithDefaults() Config {
	if c.NumEnvs == 0 {
		c.NumEnvs = 1
	}
	if c.WorkerSampleSize == 0 {
		c.WorkerSampleSize = defaultWorkerSampleSize
	}
	if c.NStep == 0 {
		c.NStep = 1
	}
	if c.Discount == 0 {
		c.Discount = defaultDiscount
	}
	if c.Frameskip == 0 {
		c.Frameskip = 1
	}
	if c.WeightFloor == 0 {
		c.WeightFloor = sample.DefaultWeightFloor
	}
	if c.Codec == "" {
		c.Codec = codec.NameNone
	}
	return c
}

// Validate rejects impossible configurations. It assumes defaults were
// applied.
func (c *Config) Validate() error {
	var errs error
	if c.WorkerID == "" {
		errs = multierr.Append(errs, fmt.Errorf("workerId must not be empty"))
	}
	if c.NumEnvs < 1 {
		errs = multierr.Append(errs, fmt.Errorf("numEnvs must be at least 1, got %d", c.NumEnvs))
	}
	if c.NumBackgroundEnvs < 0 {
		errs = multierr.Append(errs, fmt.Errorf("numBackgroundEnvs must not be negative, got %d", c.NumBackgroundEnvs))
	}
	if c.WorkerSampleSize < 1 {
		errs = multierr.Append(errs, fmt.Errorf("workerSampleSize must be at least 1, got %d", c.WorkerSampleSize))
	}
	if c.EpisodeMaxTimesteps < 0 {
		errs = multierr.Append(errs, fmt.Errorf("episodeMaxTimesteps must not be negative, got %d", c.EpisodeMaxTimesteps))
	}
	if c.NStep < 1 {
		errs = multierr.Append(errs, fmt.Errorf("nStep must be at least 1, got %d", c.NStep))
	} else if c.NumEnvs >= 1 && c.WorkerSampleSize >= 1 {
		// A default-budget call hands each slot ceil(size/slots) rows; an
		// n-step window wider than that drops every one of them.
		perSlot := (c.WorkerSampleSize + c.NumEnvs - 1) / c.NumEnvs
		if c.NStep > perSlot {
			errs = multierr.Append(errs, fmt.Errorf("nStep %d exceeds the per-slot lookahead %d of workerSampleSize %d across %d slots", c.NStep, perSlot, c.WorkerSampleSize, c.NumEnvs))
		}
	}
	if c.Discount < 0 || c.Discount > 1 {
		errs = multierr.Append(errs, fmt.Errorf("discount %v outside [0, 1]", c.Discount))
	}
	if c.Frameskip < 1 {
		errs = multierr.Append(errs, fmt.Errorf("frameskip must be at least 1, got %d", c.Frameskip))
	}
	if c.WeightFloor <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("weightFloor must be positive, got %v", c.WeightFloor))
	}
	if _, err := codec.New(c.Codec); err != nil {
		errs = multierr.Append(errs, err)
	}
	for i, spec := range c.Preprocessors {
		if _, ok := preprocess.Registry[spec.Type]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("preprocessor %d: unknown type %q", i, spec.Type))
		}
	}
	if c.Exploration.Enabled {
		if c.Exploration.Epsilon < 0 || c.Exploration.Epsilon > 1 {
			errs = multierr.Append(errs, fmt.Errorf("exploration.epsilon %v outside [0, 1]", c.Exploration.Epsilon))
		}
		if c.Exploration.MinEpsilon < 0 || c.Exploration.MinEpsilon > c.Exploration.Epsilon {
			errs = multierr.Append(errs, fmt.Errorf("exploration.minEpsilon %v outside [0, %v]", c.Exploration.MinEpsilon, c.Exploration.Epsilon))
		}
		if c.Exploration.NumActions < 1 {
			errs = multierr.Append(errs, fmt.Errorf("exploration.numActions must be at least 1, got %d", c.Exploration.NumActions))
		}
	}

	if errs != nil {
		return errutil.Error{Code: errutil.BadConfiguration, Msg: errs.Error()}
	}
	return nil
}
