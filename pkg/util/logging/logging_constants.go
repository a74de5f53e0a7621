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

const (
	// DEFAULT is the default logging verbosity for informational messages.
	DEFAULT = 2
	// VERBOSE is for messages that trace per-call progress, such as one
	// collection call or one weight sync.
	VERBOSE = 3
	// DEBUG is for messages useful when debugging a single component.
	DEBUG = 4
	// TRACE is for per-step messages. Expect very high volume.
	TRACE = 5
)
