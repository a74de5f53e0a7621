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

// episodeTracker keeps the finished-episode history per slot. Workload
// statistics aggregate over it.
type episodeTracker struct {
	rewards  [][]float64
	lengths  [][]int
	episodes int
}

func newEpisodeTracker(slots int) *episodeTracker {
	return &episodeTracker{
		rewards: make([][]float64, slots),
		lengths: make([][]int, slots),
	}
}

// finish records one finished episode for the slot, whether it ended on a
// terminal or on the episode step cap.
func (t *episodeTracker) finish(slot int, reward float64, steps int) {
	t.rewards[slot] = append(t.rewards[slot], reward)
	t.lengths[slot] = append(t.lengths[slot], steps)
	t.episodes++
}
