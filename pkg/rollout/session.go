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

import "time"

// session is the carry state that makes collection calls resumable: a
// sequence of calls walks the same trajectories as one long call. It is
// mutated only under the worker mutex.
type session struct {
	// agent holds, per slot, the processed state the next action will be
	// computed from. It already reflects any episode reset.
	agent [][]float64

	// episodeReward and episodeSteps accumulate the running episode per
	// slot and reset to zero on finalization.
	episodeReward []float64
	episodeSteps  []int

	// totalSteps and totalTime accumulate across calls for lifetime
	// throughput statistics.
	totalSteps int
	totalTime  time.Duration
}

func newSession(slots int) *session {
	return &session{
		agent:         make([][]float64, slots),
		episodeReward: make([]float64, slots),
		episodeSteps:  make([]int, slots),
	}
}
