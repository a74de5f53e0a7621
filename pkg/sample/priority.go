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

package sample

import (
	"context"
	"math"
)

// DefaultWeightFloor keeps every sampling priority strictly positive so no
// transition becomes undrawable in a prioritized replay buffer.
const DefaultWeightFloor = 1e-6

// WeightEstimator assigns a sampling priority to every transition of a
// finished batch. Estimators run after the n-step rewrite so the weights
// line up with the transitions that actually ship.
type WeightEstimator interface {
	Weights(ctx context.Context, batch *Batch) ([]float64, error)
}

// UnitWeights is the estimator used when priority weighting is disabled:
// every transition weighs one.
type UnitWeights struct{}

func (UnitWeights) Weights(_ context.Context, batch *Batch) ([]float64, error) {
	w := make([]float64, batch.Len())
	for i := range w {
		w[i] = 1.0
	}
	return w, nil
}

// LossFunc scores a batch with an aggregate loss and one loss per
// transition.
type LossFunc func(ctx context.Context, batch *Batch) (loss float64, lossPerItem []float64, err error)

// TDErrorWeights derives sampling priorities from a loss function: the
// absolute per-transition loss plus a floor. Non-finite losses collapse to
// the floor alone.
type TDErrorWeights struct {
	Loss LossFunc

	// Floor is the additive lower bound on every weight. Zero and below
	// fall back to DefaultWeightFloor.
	Floor float64
}

func (t TDErrorWeights) Weights(ctx context.Context, batch *Batch) ([]float64, error) {
	_, perItem, err := t.Loss(ctx, batch)
	if err != nil {
		return nil, err
	}

	floor := t.Floor
	if floor <= 0 {
		floor = DefaultWeightFloor
	}
	w := make([]float64, len(perItem))
	for i, loss := range perItem {
		abs := math.Abs(loss)
		if math.IsNaN(abs) || math.IsInf(abs, 0) {
			w[i] = floor
			continue
		}
		w[i] = abs + floor
	}
	return w, nil
}
