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

package logging

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// atomicLevel is shared by all loggers built here so the verbosity can be
// adjusted after construction.
var atomicLevel = uberzap.NewAtomicLevelAt(zapcore.InfoLevel)

// NewLogger creates a zap-backed logr.Logger. logr's V(n) maps to zap level
// -n, so a verbosity of 3 enables V(0) through V(3).
func NewLogger(verbosity int, development bool) logr.Logger {
	atomicLevel.SetLevel(zapcore.Level(int8(-1 * verbosity)))

	cfg := uberzap.NewProductionConfig()
	if development {
		cfg = uberzap.NewDevelopmentConfig()
	}
	cfg.Level = atomicLevel
	return zapr.NewLogger(uberzap.Must(cfg.Build(uberzap.AddCaller())))
}

// SetVerbosity adjusts the level of every logger built by this package.
func SetVerbosity(verbosity int) {
	atomicLevel.SetLevel(zapcore.Level(int8(-1 * verbosity)))
}

// FromContext returns the logger stored in ctx, or a discard logger when
// none was stored.
func FromContext(ctx context.Context) logr.Logger {
	return logr.FromContextOrDiscard(ctx)
}

// IntoContext stores the logger in the returned context.
func IntoContext(ctx context.Context, logger logr.Logger) context.Context {
	return logr.NewContext(ctx, logger)
}

// NewTestLogger creates a new Zap logger using the dev mode at TRACE
// verbosity.
func NewTestLogger() logr.Logger {
	cfg := uberzap.NewDevelopmentConfig()
	cfg.Level = uberzap.NewAtomicLevelAt(zapcore.Level(-1 * TRACE))
	return zapr.NewLogger(uberzap.Must(cfg.Build(uberzap.AddCaller())))
}

// NewTestLoggerIntoContext creates a new Zap logger using the dev mode and
// inserts it into the given context.
func NewTestLoggerIntoContext(ctx context.Context) context.Context {
	return IntoContext(ctx, NewTestLogger())
}
