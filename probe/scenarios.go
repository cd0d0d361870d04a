// Copyright 2023 Versity Software
// This file is licensed under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package probe

import (
	"fmt"
	"net/http"
	"slices"
	"time"
)

// TestCase is one fixed payload and the status code the function
// is expected to answer it with
type TestCase struct {
	Name           string
	Payload        map[string]any
	ExpectedStatus int
}

// Target describes the function under test and the deployment
// it belongs to
type Target struct {
	FunctionName string
	Region       string
	Environment  string
	Project      string
}

func (t Target) deviceID(n int) string {
	return fmt.Sprintf("%v-%v-test-%03d", t.Project, t.Environment, n)
}

// Scenarios returns the fixed scenario battery in execution order.
// Request ids carry the unix time of now to keep them unique per run.
func Scenarios(t Target, now time.Time) []TestCase {
	ts := now.Unix()

	return []TestCase{
		{
			Name: "Valid firmware request",
			Payload: map[string]any{
				"device_id":    t.deviceID(1),
				"request_type": "firmware",
				"resource_id":  "1.0.0",
				"request_id":   fmt.Sprintf("test-fw-%v", ts),
			},
			ExpectedStatus: http.StatusOK,
		},
		{
			Name: "Valid program request",
			Payload: map[string]any{
				"device_id":    t.deviceID(2),
				"request_type": "program",
				"resource_id":  "sensor-monitor-v1",
				"request_id":   fmt.Sprintf("test-prog-%v", ts),
			},
			ExpectedStatus: http.StatusOK,
		},
		{
			Name: "Invalid device ID",
			Payload: map[string]any{
				"device_id":    "invalid-device-id",
				"request_type": "firmware",
				"resource_id":  "1.0.0",
				"request_id":   fmt.Sprintf("test-invalid-%v", ts),
			},
			ExpectedStatus: http.StatusForbidden,
		},
		{
			// resource_id is left out on purpose
			Name: "Missing parameters",
			Payload: map[string]any{
				"device_id":    t.deviceID(3),
				"request_type": "firmware",
			},
			ExpectedStatus: http.StatusInternalServerError,
		},
		{
			Name: "Invalid request type",
			Payload: map[string]any{
				"device_id":    t.deviceID(4),
				"request_type": "invalid_type",
				"resource_id":  "1.0.0",
				"request_id":   fmt.Sprintf("test-invalid-type-%v", ts),
			},
			ExpectedStatus: http.StatusInternalServerError,
		},
	}
}

// acceptedAlternates lists the status codes tolerated in place of an
// expected one. A valid request may get 404 when the firmware or program
// has not been uploaded to the environment yet.
var acceptedAlternates = map[int][]int{
	http.StatusOK: {http.StatusNotFound},
}

// Passed reports whether statusCode satisfies the expected status
func Passed(statusCode, expected int) bool {
	if statusCode == expected {
		return true
	}
	return slices.Contains(acceptedAlternates[expected], statusCode)
}
