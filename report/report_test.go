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

package report

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestReporter_counters(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	r.Start("Valid firmware request")
	r.Pass("function_probe", "Valid firmware request", "")
	r.Start("Invalid device ID")
	r.Fail("function_probe", "Invalid device ID", "expected 403, got 200")
	r.PrintTotals()

	assert.Equal(t, 2, r.RunCount)
	assert.Equal(t, 1, r.PassCount)
	assert.Equal(t, 1, r.FailCount)
	assert.Equal(t,
		"RUN  Valid firmware request\n"+
			"PASS Valid firmware request\n"+
			"RUN  Invalid device ID\n"+
			"FAIL Invalid device ID: expected 403, got 200\n"+
			"\nRAN: 2 PASS: 1 FAIL: 1\n",
		buf.String())
}

func TestReporter_color(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithColor(true))

	r.Pass("storage_audit", "bucket", "versioning enabled")
	assert.Equal(t, colorGreen+"PASS "+colorReset+"bucket: versioning enabled\n", buf.String())
	assert.Equal(t, colorRed+"FAIL"+colorReset, r.Marker(false))
}

func TestReporter_section(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	r.Section("TEST SUMMARY")
	r.Divider()

	assert.Equal(t, "\nTEST SUMMARY\n"+
		"==================================================\n"+
		"------------------------------\n", buf.String())
}

func TestFault(t *testing.T) {
	apiErr := &smithy.GenericAPIError{
		Code:    "AccessDeniedException",
		Message: "User is not authorized to perform: lambda:InvokeFunction",
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("dial tcp: i/o timeout"), "dial tcp: i/o timeout"},
		{"api error", apiErr, "AccessDeniedException: User is not authorized to perform: lambda:InvokeFunction"},
		{"api error without message", &smithy.GenericAPIError{Code: "NoSuchBucket"}, "NoSuchBucket"},
		{"api error without code", &smithy.GenericAPIError{}, "api error : "},
		{
			"operation error",
			&smithy.OperationError{ServiceID: "Lambda", OperationName: "Invoke", Err: apiErr},
			"Invoke: AccessDeniedException: User is not authorized to perform: lambda:InvokeFunction",
		},
		{
			"wrapped operation error",
			fmt.Errorf("invoke: %w", &smithy.OperationError{ServiceID: "S3", OperationName: "GetBucketVersioning", Err: &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "The specified bucket does not exist"}}),
			"GetBucketVersioning: NoSuchBucket: The specified bucket does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fault(tt.err))
		})
	}
}
