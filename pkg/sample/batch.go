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

// Package sample carries transition batches from the rollout loop to the
// learner: column layout, n-step return adjustment, sampling priorities and
// the transport envelope.
package sample

import (
	"fmt"

	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

// Batch holds transitions in column order. Rows are interleaved by step:
// with N environment slots, row r belongs to step r/N. Slots tags each row
// with the environment slot that produced it; consumers that need
// within-episode order group by slot.
type Batch struct {
	States     [][]float64 `json:"states"`
	Actions    []int       `json:"actions"`
	Rewards    []float64   `json:"rewards"`
	NextStates [][]float64 `json:"next_states"`
	Terminals  []bool      `json:"terminals"`
	Slots      []int       `json:"slots"`
}

// NewBatch returns an empty batch with room for capacity transitions.
func NewBatch(capacity int) *Batch {
	return &Batch{
		States:     make([][]float64, 0, capacity),
		Actions:    make([]int, 0, capacity),
		Rewards:    make([]float64, 0, capacity),
		NextStates: make([][]float64, 0, capacity),
		Terminals:  make([]bool, 0, capacity),
		Slots:      make([]int, 0, capacity),
	}
}

// Len returns the number of transitions.
func (b *Batch) Len() int {
	return len(b.Actions)
}

// Append adds one transition produced by the given slot.
func (b *Batch) Append(slot int, state []float64, action int, reward float64, nextState []float64, terminal bool) {
	b.States = append(b.States, state)
	b.Actions = append(b.Actions, action)
	b.Rewards = append(b.Rewards, reward)
	b.NextStates = append(b.NextStates, nextState)
	b.Terminals = append(b.Terminals, terminal)
	b.Slots = append(b.Slots, slot)
}

// validateAligned reports a batch whose columns disagree on length.
func (b *Batch) validateAligned() error {
	n := len(b.Actions)
	if len(b.States) != n || len(b.Rewards) != n || len(b.NextStates) != n || len(b.Terminals) != n || len(b.Slots) != n {
		return errutil.Error{
			Code: errutil.Internal,
			Msg: fmt.Sprintf("batch columns disagree: states=%d actions=%d rewards=%d next_states=%d terminals=%d slots=%d",
				len(b.States), len(b.Actions), len(b.Rewards), len(b.NextStates), len(b.Terminals), len(b.Slots)),
		}
	}
	return nil
}
