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

// Package server exposes a rollout worker over HTTP. Learners drive the
// worker through a small JSON API: collect batches, push weights, resample
// exploration and read workload statistics.
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/YARL-project/YARL/pkg/policy"
	"github.com/YARL-project/YARL/pkg/rollout"
	errutil "github.com/YARL-project/YARL/pkg/util/error"
	logutil "github.com/YARL-project/YARL/pkg/util/logging"
)

// maxWeightsBytes caps accepted weight payloads.
const maxWeightsBytes = 64 << 20

// Server translates the HTTP API onto one worker.
type Server struct {
	logger logr.Logger
	worker *rollout.Worker
}

// NewServer returns a server driving the given worker.
func NewServer(logger logr.Logger, worker *rollout.Worker) *Server {
	return &Server{logger: logger.WithName("api"), worker: worker}
}

// Routes returns the handler for the worker API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/collect", s.handleCollect)
	mux.HandleFunc("/v1/collect/sample", s.handleCollectSample)
	mux.HandleFunc("/v1/statistics", s.handleStatistics)
	mux.HandleFunc("/v1/weights", s.handleWeights)
	mux.HandleFunc("/v1/exploration/resample", s.handleResample)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req rollout.CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errutil.Error{Code: errutil.BadRequest, Msg: "decoding collect request: " + err.Error()})
		return
	}

	envelope, err := s.worker.Collect(logutil.IntoContext(r.Context(), s.logger), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) handleCollectSample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	envelope, err := s.worker.CollectSample(logutil.IntoContext(r.Context(), s.logger))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.worker.WorkloadStatistics())
}

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWeightsBytes))
	if err != nil {
		s.writeError(w, errutil.Error{Code: errutil.BadRequest, Msg: "reading weights payload: " + err.Error()})
		return
	}
	if err := s.worker.SetPolicyWeights(logutil.IntoContext(r.Context(), s.logger), policy.Weights(payload)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	epsilon, err := s.worker.ResampleExploration(logutil.IntoContext(r.Context(), s.logger))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]float64{"epsilon": epsilon})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(err, "Encoding response failed")
	}
}

// errorBody is the JSON shape of API failures.
type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(err, "Request failed")
	} else {
		s.logger.V(logutil.DEBUG).Info("Request rejected", "reason", err.Error())
	}
	s.writeJSON(w, status, errorBody{Code: errutil.CanonicalCode(err), Error: err.Error()})
}

func statusFor(err error) int {
	switch errutil.CanonicalCode(err) {
	case errutil.BadRequest:
		return http.StatusBadRequest
	case errutil.ServiceUnavailable:
		return http.StatusServiceUnavailable
	case errutil.PolicyBackendError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
