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

// Package envs defines the environment contract consumed by rollout workers
// and the pool that steps a fixed set of environments in lockstep.
package envs

// StepResult is the outcome of advancing an environment by one action.
type StepResult struct {
	// State is the raw state reached by the step. The caller may retain it.
	State []float64
	// Reward is the immediate scalar reward emitted by the step.
	Reward float64
	// Terminal reports whether the episode ended on this step.
	Terminal bool
}

// Environment is a single episodic environment advanced one action at a
// time. Implementations must return state slices the caller may retain.
type Environment interface {
	// Reset starts a new episode and returns its first state.
	Reset() ([]float64, error)
	// Step advances the current episode by one action.
	Step(action int) (StepResult, error)
}

// Seeder is implemented by environments with controllable randomness.
type Seeder interface {
	Seed(seed int64)
}

// Closer is implemented by environments that hold external resources.
// Pools close such environments on shutdown.
type Closer interface {
	Close() error
}

// Space is implemented by environments that can describe their observation
// width and discrete action count. Runners use it to size policies.
type Space interface {
	ObservationSize() int
	NumActions() int
}
