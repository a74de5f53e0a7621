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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildStatistics(t *testing.T) {
	tracker := newEpisodeTracker(2)
	tracker.finish(0, 1, 10)
	tracker.finish(0, 3, 20)
	tracker.finish(1, 2, 5)
	sess := newSession(2)
	sess.totalSteps = 100
	sess.totalTime = 4 * time.Second

	stats := buildStatistics(tracker, sess, 2)

	assert.Equal(t, []float64{1, 3, 2}, stats.EpisodeRewards)
	assert.Equal(t, []int{10, 20, 5}, stats.EpisodeTimesteps)
	assert.Equal(t, 1.0, stats.MinEpisodeReward)
	assert.Equal(t, 3.0, stats.MaxEpisodeReward)
	assert.Equal(t, 2.0, stats.MeanEpisodeReward)
	// Slot 0's last episode scored 3, slot 1's scored 2.
	assert.Equal(t, 2.5, stats.FinalEpisodeReward)
	assert.Equal(t, 5, stats.MinEpisodeTimesteps)
	assert.Equal(t, 20, stats.MaxEpisodeTimesteps)
	assert.InDelta(t, 35.0/3.0, stats.MeanEpisodeTimesteps, 1e-12)
	assert.Equal(t, 3, stats.EpisodesExecuted)
	assert.Equal(t, 100, stats.WorkerSteps)
	assert.InDelta(t, 25, stats.MeanStepsPerSecond, 1e-12)
	assert.InDelta(t, 50, stats.MeanEnvFramesPerSecond, 1e-12)
}

func TestBuildStatisticsEmpty(t *testing.T) {
	stats := buildStatistics(newEpisodeTracker(3), newSession(3), 1)

	assert.NotNil(t, stats.EpisodeRewards)
	assert.Empty(t, stats.EpisodeRewards)
	assert.NotNil(t, stats.EpisodeTimesteps)
	assert.Empty(t, stats.EpisodeTimesteps)
	assert.Zero(t, stats.MinEpisodeReward)
	assert.Zero(t, stats.MaxEpisodeReward)
	assert.Zero(t, stats.MeanEpisodeReward)
	assert.Zero(t, stats.FinalEpisodeReward)
	assert.Zero(t, stats.MeanStepsPerSecond)
	assert.Zero(t, stats.EpisodesExecuted)
}
