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

package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/YARL-project/YARL/pkg/sample"
	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

// Remote asks an external policy service for actions and TD losses over
// HTTP. It implements Source, Evaluator and WeightReceiver.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote returns a client for the policy service at baseURL. A nil
// httpClient gets a 10 second timeout default.
func NewRemote(baseURL string, httpClient *http.Client) (*Remote, error) {
	if baseURL == "" {
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: "remote policy needs a base URL"}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Remote{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}, nil
}

type actionsRequest struct {
	States  [][]float64 `json:"states"`
	Explore bool        `json:"explore"`
}

type actionsResponse struct {
	Actions []int `json:"actions"`
}

type lossResponse struct {
	Loss        float64   `json:"loss"`
	LossPerItem []float64 `json:"loss_per_item"`
}

// Actions implements Source. The explore flag travels with the request so
// the service can apply its own exploration schedule.
func (r *Remote) Actions(ctx context.Context, states [][]float64, explore bool) ([]int, error) {
	var resp actionsResponse
	if err := r.post(ctx, "/v1/actions", actionsRequest{States: states, Explore: explore}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Actions) != len(states) {
		return nil, errutil.Error{Code: errutil.PolicyBackendError, Msg: fmt.Sprintf("policy service answered %d actions for %d states", len(resp.Actions), len(states))}
	}
	return resp.Actions, nil
}

// TDLoss implements Evaluator.
func (r *Remote) TDLoss(ctx context.Context, batch *sample.Batch) (float64, []float64, error) {
	var resp lossResponse
	if err := r.post(ctx, "/v1/loss", batch, &resp); err != nil {
		return 0, nil, err
	}
	if len(resp.LossPerItem) != batch.Len() {
		return 0, nil, errutil.Error{Code: errutil.PolicyBackendError, Msg: fmt.Sprintf("policy service answered %d losses for %d transitions", len(resp.LossPerItem), batch.Len())}
	}
	return resp.Loss, resp.LossPerItem, nil
}

// SetWeights implements WeightReceiver by forwarding the opaque payload.
func (r *Remote) SetWeights(weights Weights) error {
	return r.post(context.Background(), "/v1/weights", json.RawMessage(weights), nil)
}

func (r *Remote) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errutil.Error{Code: errutil.Internal, Msg: "encoding policy request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errutil.Error{Code: errutil.Internal, Msg: "building policy request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return errutil.Error{Code: errutil.PolicyBackendError, Msg: "calling policy service: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errutil.Error{Code: errutil.PolicyBackendError, Msg: fmt.Sprintf("policy service %s returned status %d", path, resp.StatusCode)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errutil.Error{Code: errutil.PolicyBackendError, Msg: "decoding policy response: " + err.Error()}
	}
	return nil
}
