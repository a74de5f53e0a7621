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

// Package preprocess turns raw environment states into the agent states
// recorded in sample batches. Each environment slot owns its own processor
// chain so slot memory never bleeds across environments.
package preprocess

import (
	"encoding/json"
	"fmt"

	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

// Processor transforms one slot's raw states into agent states. A processor
// may keep memory across steps (frame stacks do); Reset clears that memory
// when the slot starts a new episode.
type Processor interface {
	Process(state []float64) []float64
	Reset()
}

// Spec selects a processor type and its JSON parameters, as listed in a
// worker configuration.
type Spec struct {
	Type       string          `json:"type"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// FactoryFunc builds a processor instance from its JSON parameters.
type FactoryFunc func(parameters json.RawMessage) (Processor, error)

// Register is a static function that can be called to register processor
// factory functions.
func Register(processorType string, factory FactoryFunc) {
	Registry[processorType] = factory
}

// Registry is a mapping from processor type to factory function.
var Registry = map[string]FactoryFunc{}

// BuildChain composes the processors named by specs, applied in order. An
// empty spec list yields a pass-through chain. Callers build one chain per
// environment slot.
func BuildChain(specs []Spec) (Processor, error) {
	procs := make([]Processor, 0, len(specs))
	for _, spec := range specs {
		factory, ok := Registry[spec.Type]
		if !ok {
			return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("unknown preprocessor type %q", spec.Type)}
		}
		proc, err := factory(spec.Parameters)
		if err != nil {
			return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("building preprocessor %q: %v", spec.Type, err)}
		}
		procs = append(procs, proc)
	}
	return &Chain{procs: procs}, nil
}

// Chain applies processors in order.
type Chain struct {
	procs []Processor
}

func (c *Chain) Process(state []float64) []float64 {
	for _, p := range c.procs {
		state = p.Process(state)
	}
	return state
}

func (c *Chain) Reset() {
	for _, p := range c.procs {
		p.Reset()
	}
}
