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

package sample

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/YARL-project/YARL/pkg/codec"
	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

// CallMetrics summarizes one collection call for the learner side.
type CallMetrics struct {
	Timesteps        int     `json:"timesteps"`
	EpisodesFinished int     `json:"episodes_finished"`
	RuntimeMs        float64 `json:"runtime_ms"`
	StepsPerSecond   float64 `json:"steps_per_second"`
}

// Envelope is the wire form of a finished batch. State columns are encoded
// with the named codec; the remaining columns travel as plain JSON.
type Envelope struct {
	BatchID     string `json:"batch_id"`
	WorkerID    string `json:"worker_id"`
	Codec       string `json:"codec"`
	CreatedAtMs int64  `json:"created_at_ms"`

	States     [][]byte    `json:"states"`
	Actions    []int       `json:"actions"`
	Rewards    []float64   `json:"rewards"`
	NextStates [][]byte    `json:"next_states"`
	Terminals  []bool      `json:"terminals"`
	Slots      []int       `json:"slots"`
	Weights    []float64   `json:"weights"`
	Metrics    CallMetrics `json:"metrics"`
}

// Len returns the number of transitions in the envelope.
func (e *Envelope) Len() int {
	return len(e.Actions)
}

// Packager turns finished batches into envelopes for one worker.
type Packager struct {
	workerID string
	codec    codec.Codec
}

// NewPackager returns a packager stamping envelopes with workerID and
// encoding state columns with c.
func NewPackager(workerID string, c codec.Codec) *Packager {
	return &Packager{workerID: workerID, codec: c}
}

// Package encodes the batch's state columns and wraps everything in an
// envelope with a fresh batch ID. weights must align with the batch rows.
func (p *Packager) Package(b *Batch, weights []float64, metrics CallMetrics, at time.Time) (*Envelope, error) {
	if err := b.validateAligned(); err != nil {
		return nil, err
	}
	if len(weights) != b.Len() {
		return nil, errutil.Error{Code: errutil.Internal, Msg: fmt.Sprintf("got %d weights for %d transitions", len(weights), b.Len())}
	}

	states, err := p.encodeColumn(b.States)
	if err != nil {
		return nil, err
	}
	nextStates, err := p.encodeColumn(b.NextStates)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		BatchID:     uuid.NewString(),
		WorkerID:    p.workerID,
		Codec:       p.codec.Name(),
		CreatedAtMs: at.UnixMilli(),
		States:      states,
		Actions:     b.Actions,
		Rewards:     b.Rewards,
		NextStates:  nextStates,
		Terminals:   b.Terminals,
		Slots:       b.Slots,
		Weights:     weights,
		Metrics:     metrics,
	}, nil
}

func (p *Packager) encodeColumn(column [][]float64) ([][]byte, error) {
	encoded := make([][]byte, len(column))
	for i, state := range column {
		blob, err := p.codec.Encode(state)
		if err != nil {
			return nil, err
		}
		encoded[i] = blob
	}
	return encoded, nil
}

// Unpack decodes an envelope back into a batch and its weights, picking the
// decoder from the envelope's codec name.
func Unpack(e *Envelope) (*Batch, []float64, error) {
	c, err := codec.New(e.Codec)
	if err != nil {
		return nil, nil, err
	}

	b := &Batch{
		States:     make([][]float64, len(e.States)),
		Actions:    e.Actions,
		Rewards:    e.Rewards,
		NextStates: make([][]float64, len(e.NextStates)),
		Terminals:  e.Terminals,
		Slots:      e.Slots,
	}
	for i, blob := range e.States {
		if b.States[i], err = c.Decode(blob); err != nil {
			return nil, nil, err
		}
	}
	for i, blob := range e.NextStates {
		if b.NextStates[i], err = c.Decode(blob); err != nil {
			return nil, nil, err
		}
	}
	if err := b.validateAligned(); err != nil {
		return nil, nil, err
	}
	return b, e.Weights, nil
}
