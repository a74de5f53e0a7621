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

// Package cartpole implements the classic cart-pole balancing environment.
// It is the default environment wired into the rollout worker binary and the
// workhorse of the rollout tests.
package cartpole

import (
	"math"
	"math/rand"

	"github.com/YARL-project/YARL/pkg/envs"
)

const (
	gravity        = 9.81
	massCart       = 1.0
	massPole       = 0.1
	poleHalfLength = 0.5
	totalMass      = massCart + massPole
	poleMassLength = massPole * poleHalfLength
	forceMax       = 10.0
	tau            = 0.02

	xThreshold     = 2.4
	thetaThreshold = 12.0 * math.Pi / 180.0

	// DefaultMaxSteps caps an episode; reaching it ends the episode with
	// full reward.
	DefaultMaxSteps = 500

	observationSize = 4
	numActions      = 2
)

// Env is a single cart-pole instance. The state vector is
// [x, xDot, theta, thetaDot]. Action 0 pushes the cart left, action 1 right.
//
// Env implements envs.Environment, envs.Seeder and envs.Space.
type Env struct {
	x, xDot, theta, thetaDot float64

	steps    int
	maxSteps int
	rng      *rand.Rand
}

// Option configures an Env.
type Option func(*Env)

// WithSeed makes episode starts reproducible.
func WithSeed(seed int64) Option {
	return func(e *Env) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

// WithMaxSteps overrides DefaultMaxSteps. Zero or negative removes the cap.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Env) {
		e.maxSteps = maxSteps
	}
}

// New returns an unstarted environment; callers reset it before stepping.
func New(opts ...Option) *Env {
	e := &Env{
		maxSteps: DefaultMaxSteps,
		rng:      rand.New(rand.NewSource(rand.Int63())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Seed implements envs.Seeder.
func (e *Env) Seed(seed int64) {
	e.rng = rand.New(rand.NewSource(seed))
}

// ObservationSize implements envs.Space.
func (e *Env) ObservationSize() int { return observationSize }

// NumActions implements envs.Space.
func (e *Env) NumActions() int { return numActions }

// Reset starts a new episode with all state components drawn uniformly from
// [-0.05, 0.05).
func (e *Env) Reset() ([]float64, error) {
	e.x = e.rng.Float64()*0.1 - 0.05
	e.xDot = e.rng.Float64()*0.1 - 0.05
	e.theta = e.rng.Float64()*0.1 - 0.05
	e.thetaDot = e.rng.Float64()*0.1 - 0.05
	e.steps = 0
	return e.state(), nil
}

// Step integrates the dynamics for one tau interval. The episode ends when
// the cart leaves the track, the pole falls past the angle threshold, or the
// step cap is reached. Early terminations earn no reward for the final step.
func (e *Env) Step(action int) (envs.StepResult, error) {
	force := forceMax
	if action == 0 {
		force = -forceMax
	}

	cosTheta := math.Cos(e.theta)
	sinTheta := math.Sin(e.theta)

	temp := (force + poleMassLength*e.thetaDot*e.thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) / (poleHalfLength * (4.0/3.0 - massPole*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass

	e.x += tau * e.xDot
	e.xDot += tau * xAcc
	e.theta += tau * e.thetaDot
	e.thetaDot += tau * thetaAcc
	e.steps++

	fell := e.x < -xThreshold || e.x > xThreshold || e.theta < -thetaThreshold || e.theta > thetaThreshold
	capped := e.maxSteps > 0 && e.steps >= e.maxSteps

	reward := 1.0
	if fell && !capped {
		reward = 0.0
	}
	return envs.StepResult{
		State:    e.state(),
		Reward:   reward,
		Terminal: fell || capped,
	}, nil
}

func (e *Env) state() []float64 {
	return []float64{e.x, e.xDot, e.theta, e.thetaDot}
}
