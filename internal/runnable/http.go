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

package runnable

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	logutil "github.com/YARL-project/YARL/pkg/util/logging"
)

// shutdownTimeout bounds the graceful drain of in-flight HTTP requests.
const shutdownTimeout = 10 * time.Second

// HTTPServer converts the given HTTP server into a runnable.
// The server name is just being used for logging.
func HTTPServer(name string, srv *http.Server) Runnable {
	return Func(func(ctx context.Context) error {
		log := logutil.FromContext(ctx).WithValues("name", name)
		log.Info("HTTP server starting", "addr", srv.Addr)

		// Terminate the server on context closed.
		// Make sure the goroutine does not leak.
		doneCh := make(chan struct{})
		defer close(doneCh)
		go func() {
			select {
			case <-ctx.Done():
				log.Info("HTTP server shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Error(err, "HTTP server shutdown failed")
				}
			case <-doneCh:
			}
		}()

		serve := srv.ListenAndServe
		if srv.TLSConfig != nil {
			serve = func() error { return srv.ListenAndServeTLS("", "") }
		}
		if err := serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed - %w", err)
		}
		log.Info("HTTP server terminated")
		return nil
	})
}
