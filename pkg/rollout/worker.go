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

// Package rollout implements the collection worker: it steps a pool of
// environments in lockstep under an action source, assembles the observed
// transitions into batches and ships them as wire envelopes.
package rollout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/YARL-project/YARL/pkg/codec"
	"github.com/YARL-project/YARL/pkg/envs"
	"github.com/YARL-project/YARL/pkg/policy"
	"github.com/YARL-project/YARL/pkg/preprocess"
	"github.com/YARL-project/YARL/pkg/rollout/metrics"
	"github.com/YARL-project/YARL/pkg/sample"
	errutil "github.com/YARL-project/YARL/pkg/util/error"
	logutil "github.com/YARL-project/YARL/pkg/util/logging"
)

// CollectRequest bounds one collection call. At least one stop condition
// must be set.
type CollectRequest struct {
	// NumTimesteps stops the call once at least this many timesteps were
	// taken. Because all slots step together, the call overshoots to the
	// next multiple of the slot count. Zero means no budget.
	NumTimesteps int `json:"num_timesteps"`

	// MaxTimestepsPerEpisode cuts episodes off once they run this many of
	// their own steps, without marking them terminal. Zero falls back to
	// the configured default.
	MaxTimestepsPerEpisode int `json:"max_timesteps_per_episode"`

	// UseExploration lets the action source explore. Unset means true.
	UseExploration *bool `json:"use_exploration,omitempty"`

	// BreakOnTerminal stops the call at the end of the first loop
	// iteration in which any slot finished an episode.
	BreakOnTerminal bool `json:"break_on_terminal"`
}

// Worker owns a pool of environments and collects experience batches from
// them on request. Collection state carries over between calls, so several
// short calls walk the same trajectories as one long call.
//
// All methods are safe for concurrent use; collection calls serialize.
type Worker struct {
	cfg       Config
	pool      *envs.Pool
	source    policy.Source
	explorer  *policy.EpsilonGreedy
	estimator sample.WeightEstimator
	packager  *sample.Packager
	metrics   *metrics.Metrics
	clock     clock.PassiveClock

	// chains hold one preprocessor chain per slot. Chains are stateful,
	// so slots never share one.
	chains    []preprocess.Processor
	zeroWidth int

	mu      sync.Mutex
	closed  bool
	sess    *session
	tracker *episodeTracker
}

// NewWorker validates the configuration, wraps the source in epsilon-greedy
// exploration when enabled, builds per-slot preprocessor chains and starts
// the first episode in every slot. The worker takes ownership of the pool.
// A nil clock falls back to the wall clock, a nil metrics handle disables
// instrumentation.
func NewWorker(cfg Config, pool *envs.Pool, source policy.Source, m *metrics.Metrics, clk clock.PassiveClock) (*Worker, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: "worker needs an environment pool"}
	}
	if source == nil {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: "worker needs an action source"}
	}
	if pool.Slots() != cfg.NumEnvs {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("pool has %d slots, config wants %d", pool.Slots(), cfg.NumEnvs)}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	w := &Worker{
		cfg:     cfg,
		pool:    pool,
		source:  source,
		metrics: m,
		clock:   clk,
	}
	if cfg.Exploration.Enabled {
		explorer, err := policy.NewEpsilonGreedy(source, cfg.Exploration.NumActions, cfg.Exploration.Epsilon, cfg.Seed)
		if err != nil {
			return nil, err
		}
		w.explorer = explorer
		w.source = explorer
		m.RecordExplorationRate(cfg.WorkerID, explorer.Epsilon())
	}
	w.estimator = sample.UnitWeights{}
	if cfg.PriorityWeights {
		evaluator, ok := policy.AsEvaluator(w.source)
		if !ok {
			return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: "priorityWeights needs an action source that evaluates losses"}
		}
		w.estimator = sample.TDErrorWeights{Loss: evaluator.TDLoss, Floor: cfg.WeightFloor}
	}

	c, err := codec.New(cfg.Codec)
	if err != nil {
		return nil, err
	}
	w.packager = sample.NewPackager(cfg.WorkerID, c)

	w.chains = make([]preprocess.Processor, cfg.NumEnvs)
	for i := range w.chains {
		if w.chains[i], err = preprocess.BuildChain(cfg.Preprocessors); err != nil {
			return nil, err
		}
	}

	states, err := pool.ResetAll()
	if err != nil {
		return nil, err
	}
	w.sess = newSession(cfg.NumEnvs)
	w.tracker = newEpisodeTracker(cfg.NumEnvs)
	for s, state := range states {
		w.sess.agent[s] = w.chains[s].Process(state)
	}
	w.zeroWidth = len(w.sess.agent[0])
	return w, nil
}

// ID returns the worker identity stamped into envelopes.
func (w *Worker) ID() string {
	return w.cfg.WorkerID
}

// slotTrace accumulates one slot's rows during a call. Every loop iteration
// appends exactly one row to every slot, so traces stay rectangular.
type slotTrace struct {
	states    [][]float64
	actions   []int
	rewards   []float64
	terminals []bool

	// lastNext resolves the slot's final row: the processed follow-up
	// state, or nil when the last row ended its episode on a terminal.
	lastNext []float64
}

// Collect runs the lockstep step loop until a stop condition of the request
// holds, then packages everything observed into an envelope. Episodes left
// unfinished stay in the session and resume on the next call.
//
// There is no mid-call cancellation: once started, the loop runs until a
// stop condition holds. The context only travels onward to the action
// source, whose failure ends the call.
func (w *Worker) Collect(ctx context.Context, req CollectRequest) (*sample.Envelope, error) {
	if req.NumTimesteps <= 0 && !req.BreakOnTerminal {
		return nil, errutil.Error{Code: errutil.BadRequest, Msg: "request needs a timestep budget or break on terminal"}
	}
	explore := req.UseExploration == nil || *req.UseExploration
	logger := logutil.FromContext(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, errutil.Error{Code: errutil.ServiceUnavailable, Msg: "worker is shut down"}
	}

	episodeCap := req.MaxTimestepsPerEpisode
	if episodeCap == 0 {
		episodeCap = w.cfg.EpisodeMaxTimesteps
	}

	start := w.clock.Now()
	slots := w.pool.Slots()
	traces := make([]slotTrace, slots)
	timesteps := 0
	episodesFinished := 0

	for {
		states := make([][]float64, slots)
		copy(states, w.sess.agent)
		actions, err := w.source.Actions(ctx, states, explore)
		if err != nil {
			return nil, err
		}
		if len(actions) != slots {
			return nil, errutil.Error{Code: errutil.PolicyBackendError, Msg: fmt.Sprintf("got %d actions for %d environment slots", len(actions), slots)}
		}

		outcomes, err := w.pool.StepAll(actions)
		if err != nil {
			return nil, err
		}
		timesteps += slots

		anyFinished := false
		for s := range outcomes {
			out := outcomes[s]
			if out.Err != nil {
				w.metrics.RecordEnvFailure(w.cfg.WorkerID, slotLabel(s))
				logger.Error(out.Err, "Environment step failed, repeating previous state", "slot", s)
			}

			trace := &traces[s]
			trace.states = append(trace.states, w.sess.agent[s])
			trace.actions = append(trace.actions, actions[s])
			trace.rewards = append(trace.rewards, out.Reward)
			trace.terminals = append(trace.terminals, out.Terminal)

			w.sess.episodeReward[s] += out.Reward
			w.sess.episodeSteps[s]++
			cutoff := !out.Terminal && episodeCap > 0 && w.sess.episodeSteps[s] >= episodeCap

			switch {
			case out.Terminal:
				trace.lastNext = nil
				anyFinished = true
				episodesFinished++
				if err := w.finalizeEpisode(logger, s, "terminal"); err != nil {
					return nil, err
				}
			case cutoff:
				// The follow-up state runs through the chain before the
				// chain forgets this episode.
				trace.lastNext = w.chains[s].Process(out.State)
				anyFinished = true
				episodesFinished++
				if err := w.finalizeEpisode(logger, s, "cutoff"); err != nil {
					return nil, err
				}
			default:
				next := w.chains[s].Process(out.State)
				w.sess.agent[s] = next
				trace.lastNext = next
			}
		}

		if req.NumTimesteps > 0 && timesteps >= req.NumTimesteps {
			break
		}
		if req.BreakOnTerminal && anyFinished {
			break
		}
	}

	batch := w.mergeTraces(traces)
	adjusted, err := sample.AdjustNStep(batch, w.cfg.NStep, w.cfg.Discount)
	if err != nil {
		return nil, err
	}

	weights, err := w.estimator.Weights(ctx, adjusted)
	if err != nil {
		return nil, err
	}

	elapsed := w.clock.Since(start)
	w.sess.totalSteps += timesteps
	w.sess.totalTime += elapsed

	callMetrics := sample.CallMetrics{
		Timesteps:        timesteps,
		EpisodesFinished: episodesFinished,
		RuntimeMs:        float64(elapsed) / float64(time.Millisecond),
	}
	if elapsed > 0 {
		callMetrics.StepsPerSecond = float64(timesteps) / elapsed.Seconds()
	}
	w.metrics.RecordCollect(w.cfg.WorkerID, timesteps, timesteps*w.cfg.Frameskip, adjusted.Len(), elapsed)

	envelope, err := w.packager.Package(adjusted, weights, callMetrics, w.clock.Now())
	if err != nil {
		return nil, err
	}
	logger.V(logutil.VERBOSE).Info("Collection call finished",
		"batchId", envelope.BatchID, "timesteps", timesteps, "transitions", envelope.Len(), "episodesFinished", episodesFinished)
	return envelope, nil
}

// CollectSample is Collect with the configured per-call sample size.
func (w *Worker) CollectSample(ctx context.Context) (*sample.Envelope, error) {
	return w.Collect(ctx, CollectRequest{NumTimesteps: w.cfg.WorkerSampleSize})
}

// finalizeEpisode books the slot's finished episode and starts the next one.
// Called under the worker mutex.
func (w *Worker) finalizeEpisode(logger logr.Logger, slot int, reason string) error {
	reward := w.sess.episodeReward[slot]
	steps := w.sess.episodeSteps[slot]
	w.tracker.finish(slot, reward, steps)
	w.metrics.RecordEpisode(w.cfg.WorkerID, slotLabel(slot), reason, reward, steps)
	logger.V(logutil.DEBUG).Info("Episode finished", "slot", slot, "reason", reason, "reward", reward, "steps", steps)

	first, err := w.pool.ResetSlot(slot)
	if err != nil {
		return err
	}
	w.chains[slot].Reset()
	w.sess.agent[slot] = w.chains[slot].Process(first)
	w.sess.episodeReward[slot] = 0
	w.sess.episodeSteps[slot] = 0
	return nil
}

// mergeTraces interleaves the per-slot traces step-major into one batch.
// Within a slot the next state of a row is the following row's state; the
// final row falls back to the trace's lastNext, or to the zero state when
// the call ended exactly on a terminal.
func (w *Worker) mergeTraces(traces []slotTrace) *sample.Batch {
	depth := len(traces[0].states)
	batch := sample.NewBatch(depth * len(traces))
	for t := 0; t < depth; t++ {
		for s := range traces {
			trace := &traces[s]
			var next []float64
			switch {
			case t+1 < depth:
				next = trace.states[t+1]
			case trace.lastNext != nil:
				next = trace.lastNext
			default:
				next = make([]float64, w.zeroWidth)
			}
			batch.Append(s, trace.states[t], trace.actions[t], trace.rewards[t], next, trace.terminals[t])
		}
	}
	return batch
}

// SetPolicyWeights pushes fresh weights into the action source. Sources
// that cannot receive weights reject the push.
func (w *Worker) SetPolicyWeights(ctx context.Context, weights policy.Weights) error {
	receiver, ok := policy.AsWeightReceiver(w.source)
	if !ok {
		return errutil.Error{Code: errutil.BadRequest, Msg: "action source does not accept weight pushes"}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := receiver.SetWeights(weights); err != nil {
		return err
	}
	w.metrics.RecordWeightSync(w.cfg.WorkerID)
	logutil.FromContext(ctx).V(logutil.DEBUG).Info("Policy weights updated",
		"bytes", len(weights), "fingerprint", fmt.Sprintf("%016x", xxhash.Sum64(weights)))
	return nil
}

// ResampleExploration draws a fresh exploration rate from the configured
// range and installs it, returning the new rate.
func (w *Worker) ResampleExploration(ctx context.Context) (float64, error) {
	if w.explorer == nil {
		return 0, errutil.Error{Code: errutil.BadRequest, Msg: "exploration is disabled for this worker"}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	epsilon := w.explorer.Resample(w.cfg.Exploration.MinEpsilon, w.cfg.Exploration.Epsilon)
	w.metrics.RecordExplorationRate(w.cfg.WorkerID, epsilon)
	logutil.FromContext(ctx).V(logutil.DEBUG).Info("Exploration rate resampled", "epsilon", epsilon)
	return epsilon, nil
}

// WorkloadStatistics summarizes everything the worker sampled so far.
func (w *Worker) WorkloadStatistics() WorkloadStatistics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return buildStatistics(w.tracker, w.sess, w.cfg.Frameskip)
}

// Close shuts the environment pool down. Collection calls arriving after
// Close are rejected. Close is idempotent.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.pool.Close()
}

func slotLabel(slot int) string {
	return fmt.Sprintf("env_%d", slot)
}
