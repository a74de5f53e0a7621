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

package preprocess

import (
	"encoding/json"
	"fmt"
)

// In-tree processor types.
const (
	NopType        = "nop"
	ScaleType      = "scale"
	ClipType       = "clip"
	FrameStackType = "frame-stack"
)

func init() {
	Register(NopType, NopFactory)
	Register(ScaleType, ScaleFactory)
	Register(ClipType, ClipFactory)
	Register(FrameStackType, FrameStackFactory)
}

// Nop passes states through untouched.
type Nop struct{}

// NopFactory builds a Nop; it accepts no parameters.
func NopFactory(_ json.RawMessage) (Processor, error) {
	return Nop{}, nil
}

func (Nop) Process(state []float64) []float64 { return state }

func (Nop) Reset() {}

type scale struct {
	factor float64
}

type scaleParameters struct {
	Factor float64 `json:"factor"`
}

// NewScale multiplies every state component by factor.
func NewScale(factor float64) Processor {
	return &scale{factor: factor}
}

// ScaleFactory builds a scale processor from {"factor": <float>}.
func ScaleFactory(parameters json.RawMessage) (Processor, error) {
	p := scaleParameters{Factor: 1.0}
	if len(parameters) > 0 {
		if err := json.Unmarshal(parameters, &p); err != nil {
			return nil, err
		}
	}
	return NewScale(p.Factor), nil
}

func (s *scale) Process(state []float64) []float64 {
	out := make([]float64, len(state))
	for i, v := range state {
		out[i] = v * s.factor
	}
	return out
}

func (s *scale) Reset() {}

type clip struct {
	min, max float64
}

type clipParameters struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewClip clamps every state component into [min, max].
func NewClip(min, max float64) Processor {
	return &clip{min: min, max: max}
}

// ClipFactory builds a clip processor from {"min": <float>, "max": <float>}.
// Min and max default to -1 and 1.
func ClipFactory(parameters json.RawMessage) (Processor, error) {
	p := clipParameters{Min: -1.0, Max: 1.0}
	if len(parameters) > 0 {
		if err := json.Unmarshal(parameters, &p); err != nil {
			return nil, err
		}
	}
	if p.Min > p.Max {
		return nil, fmt.Errorf("clip min %v exceeds max %v", p.Min, p.Max)
	}
	return NewClip(p.Min, p.Max), nil
}

func (c *clip) Process(state []float64) []float64 {
	out := make([]float64, len(state))
	for i, v := range state {
		switch {
		case v < c.min:
			out[i] = c.min
		case v > c.max:
			out[i] = c.max
		default:
			out[i] = v
		}
	}
	return out
}

func (c *clip) Reset() {}

type frameStack struct {
	depth  int
	frames [][]float64
}

type frameStackParameters struct {
	Depth int `json:"depth"`
}

// NewFrameStack concatenates the last depth states, oldest first. The first
// state after a reset is repeated to fill the stack.
func NewFrameStack(depth int) Processor {
	return &frameStack{depth: depth}
}

// FrameStackFactory builds a frame-stack processor from {"depth": <int>}.
func FrameStackFactory(parameters json.RawMessage) (Processor, error) {
	var p frameStackParameters
	if len(parameters) > 0 {
		if err := json.Unmarshal(parameters, &p); err != nil {
			return nil, err
		}
	}
	if p.Depth < 1 {
		return nil, fmt.Errorf("frame-stack depth must be at least 1, got %d", p.Depth)
	}
	return NewFrameStack(p.Depth), nil
}

func (f *frameStack) Process(state []float64) []float64 {
	if len(f.frames) == 0 {
		f.frames = make([][]float64, f.depth)
		for i := range f.frames {
			f.frames[i] = state
		}
	} else {
		f.frames = append(f.frames[1:], state)
	}

	out := make([]float64, 0, f.depth*len(state))
	for _, frame := range f.frames {
		out = append(out, frame...)
	}
	return out
}

func (f *frameStack) Reset() {
	f.frames = nil
}
