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
	"fmt"

	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

// AdjustNStep rewrites each transition to carry its n-step return: the
// reward becomes the discounted sum of the next n rewards along the same
// slot, and the next state becomes the state n steps ahead. Windows stop
// early at a terminal transition, which is included. Terminal rows keep
// their one-step form.
//
// Windows never mix slots. Each slot's trailing n-1 transitions have
// incomplete windows and are dropped, so a slot contributing L transitions
// keeps max(0, L-n+1) of them. Row order is otherwise preserved.
//
// n == 1 returns the batch unchanged.
func AdjustNStep(b *Batch, n int, discount float64) (*Batch, error) {
	if n < 1 {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("n-step must be at least 1, got %d", n)}
	}
	if err := b.validateAligned(); err != nil {
		return nil, err
	}
	if n == 1 {
		return b, nil
	}

	// Row indexes per slot, in step order.
	rowsBySlot := map[int][]int{}
	for row, slot := range b.Slots {
		rowsBySlot[slot] = append(rowsBySlot[slot], row)
	}

	keep := make([]bool, b.Len())
	rewards := append([]float64(nil), b.Rewards...)
	nextStates := append([][]float64(nil), b.NextStates...)
	kept := 0

	for _, rows := range rowsBySlot {
		for p := 0; p+n <= len(rows); p++ {
			i := rows[p]
			keep[i] = true
			kept++
			if b.Terminals[i] {
				continue
			}
			g := discount
			for j := 1; j < n; j++ {
				k := rows[p+j]
				rewards[i] += g * b.Rewards[k]
				nextStates[i] = b.NextStates[k]
				if b.Terminals[k] {
					break
				}
				g *= discount
			}
		}
	}

	out := NewBatch(kept)
	for row := 0; row < b.Len(); row++ {
		if !keep[row] {
			continue
		}
		out.Append(b.Slots[row], b.States[row], b.Actions[row], rewards[row], nextStates[row], b.Terminals[row])
	}
	return out, nil
}
