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

// Package policy defines the boundary between the rollout loop and whatever
// picks actions: a local function approximator or a remote policy service.
package policy

import (
	"context"

	"github.com/YARL-project/YARL/pkg/sample"
)

// Weights is an opaque, policy-defined weight payload, conventionally JSON.
// Workers forward it to the policy without interpreting it.
type Weights []byte

// Source selects actions for a batch of agent states, one action per state.
// The explore flag lets the source randomize; sources without exploration of
// their own ignore it.
type Source interface {
	Actions(ctx context.Context, states [][]float64, explore bool) ([]int, error)
}

// Evaluator is implemented by sources that can score a batch with a TD loss,
// aggregate and per transition. Priority weighting consumes the per-item
// part.
type Evaluator interface {
	TDLoss(ctx context.Context, batch *sample.Batch) (loss float64, lossPerItem []float64, err error)
}

// WeightReceiver is implemented by sources that accept weight pushes from a
// learner.
type WeightReceiver interface {
	SetWeights(weights Weights) error
}

// wrapper is implemented by sources that decorate another source.
type wrapper interface {
	Unwrap() Source
}

// AsEvaluator unwraps s until it finds an Evaluator.
func AsEvaluator(s Source) (Evaluator, bool) {
	for s != nil {
		if ev, ok := s.(Evaluator); ok {
			return ev, true
		}
		w, ok := s.(wrapper)
		if !ok {
			break
		}
		s = w.Unwrap()
	}
	return nil, false
}

// AsWeightReceiver unwraps s until it finds a WeightReceiver.
func AsWeightReceiver(s Source) (WeightReceiver, bool) {
	for s != nil {
		if r, ok := s.(WeightReceiver); ok {
			return r, true
		}
		w, ok := s.(wrapper)
		if !ok {
			break
		}
		s = w.Unwrap()
	}
	return nil, false
}
