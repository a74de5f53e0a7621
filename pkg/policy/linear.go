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
	"encoding/json"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YARL-project/YARL/pkg/sample"
	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

// LinearPolicy scores actions with a single linear layer, Q(s) = W*s + b,
// and acts greedily, lowest action index winning ties. It doubles as a TD(0)
// evaluator for priority weighting and accepts learner weight pushes.
//
// LinearPolicy is safe for concurrent use.
type LinearPolicy struct {
	obsSize    int
	numActions int
	discount   float64

	mu      sync.RWMutex
	w       *mat.Dense
	b       *mat.VecDense
	version int64
}

// linearWeights is the JSON weight payload accepted by SetWeights: one row
// of w per action, one bias per action.
type linearWeights struct {
	Version int64       `json:"version"`
	W       [][]float64 `json:"w"`
	B       []float64   `json:"b"`
}

// NewLinearPolicy returns a zero-initialized policy. discount is the decay
// used for TD(0) targets in TDLoss.
func NewLinearPolicy(obsSize, numActions int, discount float64) (*LinearPolicy, error) {
	if obsSize < 1 {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("observation size must be at least 1, got %d", obsSize)}
	}
	if numActions < 1 {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("action count must be at least 1, got %d", numActions)}
	}
	if discount < 0 || discount > 1 {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("discount %v outside [0, 1]", discount)}
	}
	return &LinearPolicy{
		obsSize:    obsSize,
		numActions: numActions,
		discount:   discount,
		w:          mat.NewDense(numActions, obsSize, nil),
		b:          mat.NewVecDense(numActions, nil),
	}, nil
}

// Actions implements Source with a greedy argmax over action scores. The
// policy has no exploration of its own, so the explore flag is ignored;
// exploring workers wrap it in EpsilonGreedy.
func (p *LinearPolicy) Actions(_ context.Context, states [][]float64, _ bool) ([]int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	actions := make([]int, len(states))
	for i, state := range states {
		q, err := p.scoresLocked(state)
		if err != nil {
			return nil, err
		}
		actions[i] = floats.MaxIdx(q)
	}
	return actions, nil
}

// TDLoss implements Evaluator with the TD(0) error
// r + discount*max_a' Q(s') - Q(s, a) per transition, zeroing the bootstrap
// on terminals. The aggregate is the mean squared error over the batch.
func (p *LinearPolicy) TDLoss(_ context.Context, b *sample.Batch) (float64, []float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	perItem := make([]float64, b.Len())
	for i := range perItem {
		q, err := p.scoresLocked(b.States[i])
		if err != nil {
			return 0, nil, err
		}
		action := b.Actions[i]
		if action < 0 || action >= p.numActions {
			return 0, nil, errutil.Error{Code: errutil.BadRequest, Msg: fmt.Sprintf("action %d outside the %d-action space", action, p.numActions)}
		}

		target := b.Rewards[i]
		if !b.Terminals[i] {
			next, err := p.scoresLocked(b.NextStates[i])
			if err != nil {
				return 0, nil, err
			}
			target += p.discount * floats.Max(next)
		}
		perItem[i] = target - q[action]
	}

	var loss float64
	if len(perItem) > 0 {
		loss = floats.Dot(perItem, perItem) / float64(len(perItem))
	}
	return loss, perItem, nil
}

// SetWeights implements WeightReceiver. The payload must be linearWeights
// JSON with shapes matching the policy.
func (p *LinearPolicy) SetWeights(weights Weights) error {
	var lw linearWeights
	if err := json.Unmarshal(weights, &lw); err != nil {
		return errutil.Error{Code: errutil.BadRequest, Msg: "decoding linear policy weights: " + err.Error()}
	}
	if len(lw.W) != p.numActions || len(lw.B) != p.numActions {
		return errutil.Error{Code: errutil.BadRequest, Msg: fmt.Sprintf("weights describe %d actions, policy has %d", len(lw.W), p.numActions)}
	}

	flat := make([]float64, 0, p.numActions*p.obsSize)
	for i, row := range lw.W {
		if len(row) != p.obsSize {
			return errutil.Error{Code: errutil.BadRequest, Msg: fmt.Sprintf("weight row %d has width %d, policy observes %d", i, len(row), p.obsSize)}
		}
		flat = append(flat, row...)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.w = mat.NewDense(p.numActions, p.obsSize, flat)
	p.b = mat.NewVecDense(p.numActions, append([]float64(nil), lw.B...))
	p.version = lw.Version
	return nil
}

// Version returns the version of the last accepted weight push, zero before
// any push.
func (p *LinearPolicy) Version() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// scoresLocked computes Q(state) for every action. Callers hold p.mu.
func (p *LinearPolicy) scoresLocked(state []float64) ([]float64, error) {
	if len(state) != p.obsSize {
		return nil, errutil.Error{Code: errutil.BadRequest, Msg: fmt.Sprintf("state has width %d, policy observes %d", len(state), p.obsSize)}
	}

	var q mat.VecDense
	q.MulVec(p.w, mat.NewVecDense(p.obsSize, state))
	q.AddVec(&q, p.b)
	return q.RawVector().Data, nil
}

// EncodeLinearWeights serializes a weight push in the format SetWeights
// accepts.
func EncodeLinearWeights(version int64, w [][]float64, b []float64) (Weights, error) {
	raw, err := json.Marshal(linearWeights{Version: version, W: w, B: b})
	if err != nil {
		return nil, err
	}
	return Weights(raw), nil
}
