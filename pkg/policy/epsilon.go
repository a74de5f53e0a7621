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

package policy

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

// EpsilonGreedy decorates a Source with worker-side exploration. Each
// exploring Actions call makes a single Bernoulli draw: with probability
// epsilon the whole call is answered with uniformly random actions, otherwise
// the inner source decides with exploration turned off. Keeping one draw per
// call avoids a network round trip per explored step when the inner source
// is remote.
type EpsilonGreedy struct {
	inner      Source
	numActions int

	mu      sync.Mutex
	epsilon float64
	rng     *rand.Rand
}

// NewEpsilonGreedy wraps inner. epsilon must lie in [0, 1] and numActions
// must cover the environment's action space.
func NewEpsilonGreedy(inner Source, numActions int, epsilon float64, seed int64) (*EpsilonGreedy, error) {
	if inner == nil {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: "epsilon-greedy needs an inner action source"}
	}
	if numActions < 1 {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("epsilon-greedy needs at least one action, got %d", numActions)}
	}
	if epsilon < 0 || epsilon > 1 {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("exploration rate %v outside [0, 1]", epsilon)}
	}
	return &EpsilonGreedy{
		inner:      inner,
		numActions: numActions,
		epsilon:    epsilon,
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// Actions implements Source. With explore false the wrapper is a plain
// pass-through.
func (e *EpsilonGreedy) Actions(ctx context.Context, states [][]float64, explore bool) ([]int, error) {
	if !explore {
		return e.inner.Actions(ctx, states, false)
	}

	e.mu.Lock()
	drawn := e.rng.Float64() < e.epsilon
	var actions []int
	if drawn {
		actions = make([]int, len(states))
		for i := range actions {
			actions[i] = e.rng.Intn(e.numActions)
		}
	}
	e.mu.Unlock()

	if drawn {
		return actions, nil
	}
	return e.inner.Actions(ctx, states, false)
}

// Epsilon returns the current exploration rate.
func (e *EpsilonGreedy) Epsilon() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epsilon
}

// SetEpsilon replaces the exploration rate, clamped into [0, 1].
func (e *EpsilonGreedy) SetEpsilon(epsilon float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epsilon = clamp01(epsilon)
}

// Resample draws a fresh exploration rate uniformly from [min, max) and
// installs it. Fleets of workers use it so each worker explores at its own
// rate. The result is clamped into [0, 1] and returned.
func (e *EpsilonGreedy) Resample(min, max float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epsilon = clamp01(sampleUniform(e.rng, min, max))
	return e.epsilon
}

// Unwrap exposes the inner source for capability discovery.
func (e *EpsilonGreedy) Unwrap() Source {
	return e.inner
}

func sampleUniform(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rng.Float64()*(max-min)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
