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
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WorkloadStatistics summarizes a worker's lifetime sampling work. Learners
// aggregate these across a fleet. Before any episode has finished, the
// reward and length aggregates are zero.
type WorkloadStatistics struct {
	// EpisodeRewards and EpisodeTimesteps list every finished episode,
	// grouped by slot and chronological within each slot.
	EpisodeRewards   []float64 `json:"episode_rewards"`
	EpisodeTimesteps []int     `json:"episode_timesteps"`

	MinEpisodeReward  float64 `json:"min_episode_reward"`
	MaxEpisodeReward  float64 `json:"max_episode_reward"`
	MeanEpisodeReward float64 `json:"mean_episode_reward"`
	// FinalEpisodeReward is the mean over slots of each slot's most recent
	// episode reward, a cheap freshness signal.
	FinalEpisodeReward float64 `json:"final_episode_reward"`

	MinEpisodeTimesteps  int     `json:"min_episode_timesteps"`
	MaxEpisodeTimesteps  int     `json:"max_episode_timesteps"`
	MeanEpisodeTimesteps float64 `json:"mean_episode_timesteps"`

	EpisodesExecuted int `json:"episodes_executed"`
	WorkerSteps      int `json:"worker_steps"`

	MeanStepsPerSecond     float64 `json:"mean_steps_per_second"`
	MeanEnvFramesPerSecond float64 `json:"mean_env_frames_per_second"`
}

func buildStatistics(tracker *episodeTracker, sess *session, frameskip int) WorkloadStatistics {
	stats := WorkloadStatistics{
		EpisodeRewards:   []float64{},
		EpisodeTimesteps: []int{},
		EpisodesExecuted: tracker.episodes,
		WorkerSteps:      sess.totalSteps,
	}

	var finals []float64
	for slot := range tracker.rewards {
		stats.EpisodeRewards = append(stats.EpisodeRewards, tracker.rewards[slot]...)
		stats.EpisodeTimesteps = append(stats.EpisodeTimesteps, tracker.lengths[slot]...)
		if n := len(tracker.rewards[slot]); n > 0 {
			finals = append(finals, tracker.rewards[slot][n-1])
		}
	}

	if len(stats.EpisodeRewards) > 0 {
		stats.MinEpisodeReward = floats.Min(stats.EpisodeRewards)
		stats.MaxEpisodeReward = floats.Max(stats.EpisodeRewards)
		stats.MeanEpisodeReward = stat.Mean(stats.EpisodeRewards, nil)
		stats.FinalEpisodeReward = stat.Mean(finals, nil)

		lengths := make([]float64, len(stats.EpisodeTimesteps))
		for i, l := range stats.EpisodeTimesteps {
			lengths[i] = float64(l)
		}
		stats.MinEpisodeTimesteps = int(floats.Min(lengths))
		stats.MaxEpisodeTimesteps = int(floats.Max(lengths))
		stats.MeanEpisodeTimesteps = stat.Mean(lengths, nil)
	}

	if sess.totalTime > 0 {
		perSecond := float64(sess.totalSteps) / sess.totalTime.Seconds()
		stats.MeanStepsPerSecond = perSecond
		stats.MeanEnvFramesPerSecond = perSecond * float64(frameskip)
	}
	return stats
}
