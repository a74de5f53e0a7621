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

// Package runner assembles and runs a rollout worker process: environment
// pool, policy source, HTTP API, metrics endpoint and gRPC health probes.
package runner

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	healthPb "google.golang.org/grpc/health/grpc_health_v1"
	"sigs.k8s.io/yaml"

	"github.com/YARL-project/YARL/internal/runnable"
	tlsutil "github.com/YARL-project/YARL/internal/tls"
	"github.com/YARL-project/YARL/pkg/envs"
	"github.com/YARL-project/YARL/pkg/envs/cartpole"
	"github.com/YARL-project/YARL/pkg/policy"
	"github.com/YARL-project/YARL/pkg/preprocess"
	"github.com/YARL-project/YARL/pkg/rollout"
	"github.com/YARL-project/YARL/pkg/rollout/metrics"
	"github.com/YARL-project/YARL/pkg/rollout/server"
	envutil "github.com/YARL-project/YARL/pkg/util/env"
	errutil "github.com/YARL-project/YARL/pkg/util/error"
	logutil "github.com/YARL-project/YARL/pkg/util/logging"
	"github.com/YARL-project/YARL/version"
)

var (
	// Flags
	apiPort = flag.Int(
		"api-port",
		9002,
		"The port the worker API listens on")
	grpcHealthPort = flag.Int(
		"grpc-health-port",
		9005,
		"The port used for gRPC liveness and readiness probes")
	metricsPort = flag.Int(
		"metrics-port",
		9090,
		"The metrics port")
	secureServing = flag.Bool(
		"secure-serving",
		false,
		"Serves the worker API over TLS with a self-signed certificate")
	configFile = flag.String(
		"config-file",
		"",
		"Path to the worker configuration in YAML form")
	environmentName = flag.String(
		"environment",
		cartpoleEnvironment,
		"The environment to collect from")
	policyEndpoint = flag.String(
		"policy-endpoint",
		"",
		"Base URL of a remote policy backend. Empty runs the built-in linear policy")
	logVerbosity = flag.Int("v", logutil.DEFAULT, "number for the log level verbosity")
)

const (
	cartpoleEnvironment = "cartpole"

	certOrganization = "YARL"
	certValidity     = 10 * 365 * 24 * time.Hour
)

// NewRunner returns a runner with the default executable name.
func NewRunner() *Runner {
	return &Runner{executableName: "rollout-worker"}
}

// Runner builds a worker process out of its flags and runs it until the
// context ends.
type Runner struct {
	executableName string
}

// WithExecutableName sets the name used in the startup version log.
func (r *Runner) WithExecutableName(name string) *Runner {
	r.executableName = name
	return r
}

func (r *Runner) Run(ctx context.Context) error {
	flag.Parse()

	logger := logutil.NewLogger(*logVerbosity, true)
	setupLog := logger.WithName("setup")
	setupLog.Info(r.executableName+" build", "commit-sha", version.CommitSHA, "build-ref", version.BuildRef, "release", version.Release)

	// Print all flag values
	flags := make(map[string]any)
	flag.VisitAll(func(f *flag.Flag) {
		flags[f.Name] = f.Value
	})
	setupLog.Info("Flags processed", "flags", flags)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		setupLog.Error(err, "Failed to load configuration", "path", *configFile)
		return err
	}
	cfg = cfg.WithDefaults()
	if cfg.WorkerID == "" {
		cfg.WorkerID = envutil.GetEnvString("WORKER_ID", "worker-"+uuid.NewString()[:8], setupLog.V(logutil.VERBOSE))
	}

	pool, space, err := buildEnvironments(logger, *environmentName, cfg)
	if err != nil {
		setupLog.Error(err, "Failed to build environments", "environment", *environmentName)
		return err
	}
	if cfg.Exploration.Enabled && cfg.Exploration.NumActions == 0 {
		cfg.Exploration.NumActions = space.NumActions()
	}

	source, err := buildPolicySource(cfg, space)
	if err != nil {
		setupLog.Error(err, "Failed to build policy source")
		return err
	}

	m, err := metrics.New("", nil, metrics.Options{})
	if err != nil {
		setupLog.Error(err, "Failed to register metrics")
		return err
	}

	worker, err := rollout.NewWorker(cfg, pool, source, m, nil)
	if err != nil {
		setupLog.Error(err, "Failed to build worker")
		return err
	}
	defer func() {
		if err := worker.Close(); err != nil {
			setupLog.Error(err, "Closing worker failed")
		}
	}()

	var group runnable.Group

	// Register the worker API server.
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", *apiPort),
		Handler:           server.NewServer(logger, worker).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if *secureServing {
		cert, err := tlsutil.SelfSignedCertificate(certOrganization, certValidity)
		if err != nil {
			setupLog.Error(err, "Failed to create self-signed certificate")
			return err
		}
		apiServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
	}
	group.Add(runnable.HTTPServer("api", apiServer))

	// Register the metrics server.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	group.Add(runnable.HTTPServer("metrics", &http.Server{
		Addr:              fmt.Sprintf(":%d", *metricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}))

	// Register the health server.
	healthSrv := grpc.NewServer()
	healthPb.RegisterHealthServer(healthSrv, &healthServer{logger: logger.WithName("health")})
	group.Add(runnable.GRPCServer("health", healthSrv, *grpcHealthPort))

	// Run everything until a signal arrives. This blocks.
	setupLog.Info("Worker starting", "workerId", worker.ID(), "environment", *environmentName)
	if err := group.Start(logutil.IntoContext(ctx, logger)); err != nil {
		setupLog.Error(err, "Worker failed")
		return err
	}
	setupLog.Info("Worker terminated")
	return nil
}

// loadConfig reads the worker configuration from a YAML file. An empty path
// yields the zero configuration, which runs on defaults.
func loadConfig(path string) (rollout.Config, error) {
	var cfg rollout.Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("reading config file: %v", err)}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("parsing config file: %v", err)}
	}
	return cfg, nil
}

// buildEnvironments builds the slot pool for the named environment and
// returns the environment's space for sizing the policy.
func buildEnvironments(logger logr.Logger, name string, cfg rollout.Config) (*envs.Pool, envs.Space, error) {
	switch name {
	case cartpoleEnvironment:
		factory := func(i int) (envs.Environment, error) {
			return cartpole.New(cartpole.WithSeed(cfg.Seed + int64(i))), nil
		}
		pool, err := envs.NewPool(logger, factory, cfg.NumEnvs, cfg.NumBackgroundEnvs)
		if err != nil {
			return nil, nil, err
		}
		return pool, cartpole.New(), nil
	default:
		return nil, nil, errutil.Error{Code: errutil.BadConfiguration, Msg: fmt.Sprintf("unknown environment %q", name)}
	}
}

// buildPolicySource picks the action source: a remote policy backend when an
// endpoint is configured, otherwise the built-in linear policy sized to the
// preprocessed observation.
func buildPolicySource(cfg rollout.Config, space envs.Space) (policy.Source, error) {
	if *policyEndpoint != "" {
		return policy.NewRemote(*policyEndpoint, nil)
	}

	width, err := processedWidth(cfg.Preprocessors, space.ObservationSize())
	if err != nil {
		return nil, err
	}
	return policy.NewLinearPolicy(width, space.NumActions(), cfg.Discount)
}

// processedWidth reports how wide observations are after the preprocessor
// chain, probed with a zero state.
func processedWidth(specs []preprocess.Spec, baseWidth int) (int, error) {
	chain, err := preprocess.BuildChain(specs)
	if err != nil {
		return 0, err
	}
	return len(chain.Process(make([]float64, baseWidth))), nil
}
