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
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestGroupStopsOnMemberError(t *testing.T) {
	boom := errors.New("boom")
	var peerSawCancel bool

	var group Group
	group.Add(Func(func(ctx context.Context) error {
		return boom
	}))
	group.Add(Func(func(ctx context.Context) error {
		<-ctx.Done()
		peerSawCancel = true
		return nil
	}))

	err := group.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.True(t, peerSawCancel)
}

func TestGroupStopsOnContextEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var group Group
	for i := 0; i < 3; i++ {
		group.Add(Func(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}))
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	require.NoError(t, group.Start(ctx))
}

func TestGRPCServerStopsOnContextEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := GRPCServer("test", grpc.NewServer(), 0).Start(ctx)
	require.NoError(t, err)
}

func TestHTTPServerStopsOnContextEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	err := HTTPServer("test", srv).Start(ctx)
	require.NoError(t, err)
}
