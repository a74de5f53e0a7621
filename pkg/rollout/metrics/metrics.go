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

// Package metrics exposes the rollout worker's Prometheus collectors.
package metrics

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Options controls collector configuration.
type Options struct {
	// RewardBuckets buckets episode returns. The default suits sparse
	// unit-reward control tasks.
	RewardBuckets []float64
	// DurationBuckets buckets collection call runtimes in seconds.
	DurationBuckets []float64
}

// Metrics bundles the worker's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	stepsTotal           *prom.CounterVec
	envFramesTotal       *prom.CounterVec
	episodesTotal        *prom.CounterVec
	envFailuresTotal     *prom.CounterVec
	weightSyncsTotal     *prom.CounterVec
	episodeReward        *prom.HistogramVec
	episodeSteps         *prom.HistogramVec
	collectSeconds       *prom.HistogramVec
	batchTransitions     *prom.HistogramVec
	explorationRate      *prom.GaugeVec
	lastEpisodeRewardVec *prom.GaugeVec
}

// New creates and registers the worker collectors under
// namespace_rollout_*. A nil registerer falls back to the default one.
func New(namespace string, reg prom.Registerer, opts Options) (*Metrics, error) {
	if namespace == "" {
		namespace = "yarl"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	rewardBuckets := opts.RewardBuckets
	if len(rewardBuckets) == 0 {
		rewardBuckets = prom.LinearBuckets(0, 50, 11)
	}
	durationBuckets := opts.DurationBuckets
	if len(durationBuckets) == 0 {
		durationBuckets = prom.DefBuckets
	}

	stepsTotal := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "steps_total",
		Help:      "Total environment steps executed across all slots.",
	}, []string{"worker"})
	envFramesTotal := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "env_frames_total",
		Help:      "Total environment frames, steps multiplied by the frameskip.",
	}, []string{"worker"})
	episodesTotal := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "episodes_finished_total",
		Help:      "Total finished episodes by finish reason.",
	}, []string{"worker", "reason"})
	envFailuresTotal := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "env_failures_total",
		Help:      "Total degraded environment steps.",
	}, []string{"worker", "slot"})
	weightSyncsTotal := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "weight_syncs_total",
		Help:      "Total policy weight pushes accepted.",
	}, []string{"worker"})
	episodeReward := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "episode_reward",
		Help:      "Undiscounted return of finished episodes.",
		Buckets:   rewardBuckets,
	}, []string{"worker"})
	episodeSteps := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "episode_steps",
		Help:      "Length of finished episodes in steps.",
		Buckets:   prom.ExponentialBuckets(1, 2, 12),
	}, []string{"worker"})
	collectSeconds := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "collect_duration_seconds",
		Help:      "Wall time of collection calls in seconds.",
		Buckets:   durationBuckets,
	}, []string{"worker"})
	batchTransitions := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "batch_transitions",
		Help:      "Transitions per packaged batch, after n-step truncation.",
		Buckets:   prom.ExponentialBuckets(1, 2, 14),
	}, []string{"worker"})
	explorationRate := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "exploration_epsilon",
		Help:      "Current worker-side exploration rate.",
	}, []string{"worker"})
	lastEpisodeReward := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rollout",
		Name:      "last_episode_reward",
		Help:      "Return of the most recently finished episode per slot.",
	}, []string{"worker", "slot"})

	var err error
	if stepsTotal, err = registerCollector(reg, stepsTotal); err != nil {
		return nil, err
	}
	if envFramesTotal, err = registerCollector(reg, envFramesTotal); err != nil {
		return nil, err
	}
	if episodesTotal, err = registerCollector(reg, episodesTotal); err != nil {
		return nil, err
	}
	if envFailuresTotal, err = registerCollector(reg, envFailuresTotal); err != nil {
		return nil, err
	}
	if weightSyncsTotal, err = registerCollector(reg, weightSyncsTotal); err != nil {
		return nil, err
	}
	if episodeReward, err = registerCollector(reg, episodeReward); err != nil {
		return nil, err
	}
	if episodeSteps, err = registerCollector(reg, episodeSteps); err != nil {
		return nil, err
	}
	if collectSeconds, err = registerCollector(reg, collectSeconds); err != nil {
		return nil, err
	}
	if batchTransitions, err = registerCollector(reg, batchTransitions); err != nil {
		return nil, err
	}
	if explorationRate, err = registerCollector(reg, explorationRate); err != nil {
		return nil, err
	}
	if lastEpisodeReward, err = registerCollector(reg, lastEpisodeReward); err != nil {
		return nil, err
	}

	return &Metrics{
		stepsTotal:           stepsTotal,
		envFramesTotal:       envFramesTotal,
		episodesTotal:        episodesTotal,
		envFailuresTotal:     envFailuresTotal,
		weightSyncsTotal:     weightSyncsTotal,
		episodeReward:        episodeReward,
		episodeSteps:         episodeSteps,
		collectSeconds:       collectSeconds,
		batchTransitions:     batchTransitions,
		explorationRate:      explorationRate,
		lastEpisodeRewardVec: lastEpisodeReward,
	}, nil
}

// RecordCollect records one finished collection call.
func (m *Metrics) RecordCollect(worker string, steps, envFrames, batchSize int, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(worker).Add(float64(steps))
	m.envFramesTotal.WithLabelValues(worker).Add(float64(envFrames))
	m.batchTransitions.WithLabelValues(worker).Observe(float64(batchSize))
	m.collectSeconds.WithLabelValues(worker).Observe(duration.Seconds())
}

// RecordEpisode records one finished episode. reason is "terminal" or
// "cutoff".
func (m *Metrics) RecordEpisode(worker, slot, reason string, reward float64, steps int) {
	if m == nil {
		return
	}
	m.episodesTotal.WithLabelValues(worker, reason).Inc()
	m.episodeReward.WithLabelValues(worker).Observe(reward)
	m.episodeSteps.WithLabelValues(worker).Observe(float64(steps))
	m.lastEpisodeRewardVec.WithLabelValues(worker, slot).Set(reward)
}

// RecordEnvFailure records one degraded environment step.
func (m *Metrics) RecordEnvFailure(worker, slot string) {
	if m == nil {
		return
	}
	m.envFailuresTotal.WithLabelValues(worker, slot).Inc()
}

// RecordWeightSync records one accepted weight push.
func (m *Metrics) RecordWeightSync(worker string) {
	if m == nil {
		return
	}
	m.weightSyncsTotal.WithLabelValues(worker).Inc()
}

// RecordExplorationRate publishes the current exploration rate.
func (m *Metrics) RecordExplorationRate(worker string, epsilon float64) {
	if m == nil {
		return
	}
	m.explorationRate.WithLabelValues(worker).Set(epsilon)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
