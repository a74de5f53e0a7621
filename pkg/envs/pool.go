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

package envs

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

// Factory builds the i-th environment of a pool.
type Factory func(i int) (Environment, error)

// Outcome is the per-slot result of a lockstep step. When Err is non-nil the
// slot's environment failed: State repeats the slot's previous state, Reward
// is zero and Terminal is false, so the transition stays well formed.
type Outcome struct {
	State    []float64
	Reward   float64
	Terminal bool
	Err      error
}

// readyEnv is an already-reset spare environment waiting for rotation.
type readyEnv struct {
	env   Environment
	state []float64
}

// Pool steps a fixed set of environment slots in lockstep. Optional spare
// environments are kept reset in the background and rotated in when a slot
// finishes an episode, so a slow Reset never stalls the step loop.
//
// Pool methods are not safe for concurrent use; callers serialize access.
type Pool struct {
	logger logr.Logger
	slots  []Environment
	last   [][]float64

	ready chan readyEnv
	wg    sync.WaitGroup
}

// NewPool builds slots active environments plus background spares from the
// factory. The factory is called with indexes 0 through slots+background-1.
// Spares are reset eagerly so they are ready to rotate in.
func NewPool(logger logr.Logger, factory Factory, slots, background int) (*Pool, error) {
	if slots <= 0 {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: "pool needs at least one environment slot"}
	}
	if background < 0 {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: "background environment count must not be negative"}
	}

	p := &Pool{
		logger: logger.WithName("envpool"),
		slots:  make([]Environment, slots),
		last:   make([][]float64, slots),
		ready:  make(chan readyEnv, background),
	}
	for i := 0; i < slots; i++ {
		env, err := factory(i)
		if err != nil {
			return nil, errutil.Error{Code: errutil.EnvironmentError, Msg: fmt.Sprintf("building environment %d: %v", i, err)}
		}
		p.slots[i] = env
	}
	for i := 0; i < background; i++ {
		env, err := factory(slots + i)
		if err != nil {
			return nil, errutil.Error{Code: errutil.EnvironmentError, Msg: fmt.Sprintf("building background environment %d: %v", slots+i, err)}
		}
		state, err := env.Reset()
		if err != nil {
			return nil, errutil.Error{Code: errutil.EnvironmentError, Msg: fmt.Sprintf("resetting background environment %d: %v", slots+i, err)}
		}
		p.ready <- readyEnv{env: env, state: state}
	}
	return p, nil
}

// Slots returns the number of active environment slots.
func (p *Pool) Slots() int {
	return len(p.slots)
}

// ResetAll resets every active slot in place and returns the first state of
// each new episode, slot-indexed.
func (p *Pool) ResetAll() ([][]float64, error) {
	states := make([][]float64, len(p.slots))
	for i, env := range p.slots {
		state, err := env.Reset()
		if err != nil {
			return nil, errutil.Error{Code: errutil.EnvironmentError, Msg: fmt.Sprintf("resetting environment slot %d: %v", i, err)}
		}
		p.last[i] = state
		states[i] = state
	}
	return states, nil
}

// ResetSlot starts a fresh episode in the given slot and returns its first
// state. When a spare is ready the slot's environment is swapped out and
// reset off the step path; otherwise the reset happens in place.
func (p *Pool) ResetSlot(slot int) ([]float64, error) {
	if slot < 0 || slot >= len(p.slots) {
		return nil, errutil.Error{Code: errutil.Internal, Msg: fmt.Sprintf("environment slot %d out of range", slot)}
	}

	select {
	case spare := <-p.ready:
		retired := p.slots[slot]
		p.slots[slot] = spare.env
		p.last[slot] = spare.state
		p.wg.Add(1)
		go p.recycle(retired)
		return spare.state, nil
	default:
	}

	state, err := p.slots[slot].Reset()
	if err != nil {
		return nil, errutil.Error{Code: errutil.EnvironmentError, Msg: fmt.Sprintf("resetting environment slot %d: %v", slot, err)}
	}
	p.last[slot] = state
	return state, nil
}

// recycle resets a retired environment off the step path and returns it to
// the spare rotation.
func (p *Pool) recycle(env Environment) {
	defer p.wg.Done()
	state, err := env.Reset()
	if err != nil {
		p.logger.Error(err, "Dropping environment from the spare rotation, reset failed")
		if c, ok := env.(Closer); ok {
			if err := c.Close(); err != nil {
				p.logger.Error(err, "Closing dropped environment failed")
			}
		}
		return
	}
	p.ready <- readyEnv{env: env, state: state}
}

// StepAll advances every slot by its action. Failing slots degrade instead
// of aborting the call, see Outcome.
func (p *Pool) StepAll(actions []int) ([]Outcome, error) {
	if len(actions) != len(p.slots) {
		return nil, errutil.Error{Code: errutil.Internal, Msg: fmt.Sprintf("got %d actions for %d environment slots", len(actions), len(p.slots))}
	}

	outcomes := make([]Outcome, len(p.slots))
	for i, env := range p.slots {
		res, err := env.Step(actions[i])
		if err != nil {
			outcomes[i] = Outcome{State: p.last[i], Err: err}
			continue
		}
		p.last[i] = res.State
		outcomes[i] = Outcome{State: res.State, Reward: res.Reward, Terminal: res.Terminal}
	}
	return outcomes, nil
}

// Close waits for in-flight spare resets and closes every environment that
// implements Closer.
func (p *Pool) Close() error {
	p.wg.Wait()
	close(p.ready)

	var errs error
	for spare := range p.ready {
		errs = multierr.Append(errs, closeEnv(spare.env))
	}
	for _, env := range p.slots {
		errs = multierr.Append(errs, closeEnv(env))
	}
	return errs
}

func closeEnv(env Environment) error {
	if c, ok := env.(Closer); ok {
		return c.Close()
	}
	return nil
}
