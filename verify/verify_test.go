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

package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/versity/deployverify/notify"
	"github.com/versity/deployverify/report"
	"github.com/versity/deployverify/stackout"
)

var (
	testConfig = Config{Project: "esp32-steel", Environment: "dev", Region: "us-west-2"}
	testNow    = time.Unix(1700000000, 0)
)

type stacksMock struct {
	outputs map[string]string
	err     error
	names   []string
}

func (m *stacksMock) DescribeStacks(_ context.Context, in *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	m.names = append(m.names, aws.ToString(in.StackName))
	if m.err != nil {
		return nil, m.err
	}
	stack := cftypes.Stack{StackName: in.StackName}
	for k, v := range m.outputs {
		stack.Outputs = append(stack.Outputs, cftypes.Output{OutputKey: aws.String(k), OutputValue: aws.String(v)})
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []cftypes.Stack{stack}}, nil
}

func deployedOutputs() map[string]string {
	return map[string]string{
		stackout.KeyFunctionName:   "esp32-steel-dev-url-generator",
		stackout.KeyFirmwareBucket: "esp32-steel-dev-firmware",
		stackout.KeyProgramsBucket: "esp32-steel-dev-programs",
	}
}

// functionMock answers every scenario with its expected status unless
// status is set
type functionMock struct {
	calls  int
	status int
}

func (m *functionMock) Invoke(_ context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	m.calls++
	status := m.status
	if status == 0 {
		var payload map[string]any
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			return nil, err
		}
		switch {
		case payload["device_id"] == "invalid-device-id":
			status = 403
		case payload["resource_id"] == nil, payload["request_type"] == "invalid_type":
			status = 500
		default:
			status = 200
		}
	}
	body, _ := json.Marshal(map[string]any{"statusCode": status})
	return &lambda.InvokeOutput{StatusCode: 200, Payload: body}, nil
}

type bucketsMock struct {
	calls      int
	versioning types.BucketVersioningStatus
}

func (m *bucketsMock) GetPublicAccessBlock(context.Context, *s3.GetPublicAccessBlockInput, ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
	m.calls++
	return &s3.GetPublicAccessBlockOutput{
		PublicAccessBlockConfiguration: &types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	}, nil
}

func (m *bucketsMock) GetBucketEncryption(context.Context, *s3.GetBucketEncryptionInput, ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	m.calls++
	return &s3.GetBucketEncryptionOutput{
		ServerSideEncryptionConfiguration: &types.ServerSideEncryptionConfiguration{
			Rules: []types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &types.ServerSideEncryptionByDefault{
					SSEAlgorithm: types.ServerSideEncryptionAes256,
				},
			}},
		},
	}, nil
}

func (m *bucketsMock) GetBucketVersioning(context.Context, *s3.GetBucketVersioningInput, ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	m.calls++
	status := m.versioning
	if status == "" {
		status = types.BucketVersioningStatusEnabled
	}
	return &s3.GetBucketVersioningOutput{Status: status}, nil
}

type senderMock struct {
	events []notify.Event
	err    error
}

func (m *senderMock) Send(_ context.Context, ev notify.Event) error {
	m.events = append(m.events, ev)
	return m.err
}

func (m *senderMock) Close() error { return nil }

type fixture struct {
	stacks    *stacksMock
	functions *functionMock
	buckets   *bucketsMock
	out       bytes.Buffer
	stderr    bytes.Buffer
}

func newFixture() *fixture {
	return &fixture{
		stacks:    &stacksMock{outputs: deployedOutputs()},
		functions: &functionMock{},
		buckets:   &bucketsMock{},
	}
}

func (f *fixture) runner(opts ...Option) *Runner {
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithErrorOutput(&f.stderr),
	}, opts...)
	return New(testConfig, Clients{
		Stacks:    f.stacks,
		Functions: f.functions,
		Buckets:   f.buckets,
	}, report.New(&f.out), opts...)
}

func TestRun_allPassed(t *testing.T) {
	f := newFixture()

	s, err := f.runner().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"esp32-steel-dev-s3-lambda"}, f.stacks.names)
	assert.True(t, s.FunctionProbePassed)
	assert.True(t, s.StorageAuditPassed)
	assert.True(t, s.Passed)
	assert.Len(t, s.Invocations, 5)
	assert.Len(t, s.Checks, 6)
	assert.Equal(t, 11, s.Ran)
	assert.Equal(t, 11, s.PassCount)
	assert.Zero(t, s.FailCount)
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, "esp32-steel-dev-firmware", s.Targets.FirmwareBucket)
	assert.Equal(t, 0, ExitCode(s, err))

	assert.Contains(t, f.out.String(), "OVERALL TEST RESULTS")
	assert.Contains(t, f.out.String(), "All tests passed!")
	assert.Empty(t, f.stderr.String())
}

func TestRun_probeFailure(t *testing.T) {
	f := newFixture()
	f.functions.status = 502

	s, err := f.runner().Run(context.Background())
	require.NoError(t, err)

	assert.False(t, s.FunctionProbePassed)
	assert.True(t, s.StorageAuditPassed)
	assert.False(t, s.Passed)
	assert.Equal(t, 5, s.FailCount)
	assert.Equal(t, 1, ExitCode(s, err))
	assert.Contains(t, f.out.String(), "Some tests failed!")
}

func TestRun_auditFailure(t *testing.T) {
	f := newFixture()
	f.buckets.versioning = types.BucketVersioningStatusSuspended

	s, err := f.runner().Run(context.Background())
	require.NoError(t, err)

	assert.True(t, s.FunctionProbePassed)
	assert.False(t, s.StorageAuditPassed)
	assert.False(t, s.Passed)
	assert.Equal(t, 2, s.FailCount)
	assert.Equal(t, 1, ExitCode(s, err))
}

func TestRun_resolutionFailure(t *testing.T) {
	tests := []struct {
		name   string
		stacks *stacksMock
	}{
		{"describe error", &stacksMock{err: errors.New("access denied")}},
		{"missing output", &stacksMock{outputs: map[string]string{
			stackout.KeyFunctionName:   "fn",
			stackout.KeyFirmwareBucket: "fw",
		}}},
		{"blank output", &stacksMock{outputs: map[string]string{
			stackout.KeyFunctionName:   "fn",
			stackout.KeyFirmwareBucket: "fw",
			stackout.KeyProgramsBucket: "",
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.stacks = tt.stacks
			sender := &senderMock{}

			s, err := f.runner(WithSender(sender)).Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrResolution)
			assert.Nil(t, s)
			assert.Equal(t, 1, ExitCode(s, err))

			assert.Zero(t, f.functions.calls)
			assert.Zero(t, f.buckets.calls)
			assert.Empty(t, sender.events)
			assert.Contains(t, f.out.String(), "Error getting stack outputs: ")
			assert.Contains(t, f.out.String(), "Make sure the S3-Lambda stack is deployed")
		})
	}
}

func TestRun_reportFile(t *testing.T) {
	f := newFixture()
	path := filepath.Join(t.TempDir(), "report.json")

	s, err := f.runner(WithReportFile(path)).Run(context.Background())
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Summary
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, s.RunID, got.RunID)
	assert.Equal(t, "esp32-steel-dev-s3-lambda", got.Stack)
	assert.True(t, got.Passed)
	assert.Len(t, got.Invocations, 5)
	assert.Len(t, got.Checks, 6)
}

func TestRun_reportFileError(t *testing.T) {
	f := newFixture()
	path := filepath.Join(t.TempDir(), "missing", "report.json")

	s, err := f.runner(WithReportFile(path)).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, s.Passed)
	assert.Contains(t, f.stderr.String(), "failed to write report file")
}

func TestRun_publishesEvent(t *testing.T) {
	f := newFixture()
	f.buckets.versioning = types.BucketVersioningStatusSuspended
	sender := &senderMock{}

	s, err := f.runner(WithSender(sender)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sender.events, 1)

	ev := sender.events[0]
	assert.Equal(t, notify.EventRunCompleted, ev.EventName)
	assert.Equal(t, s.RunID, ev.RunID)
	assert.Equal(t, s.Stack, ev.Stack)
	assert.False(t, ev.Passed)

	var got Summary
	require.NoError(t, json.Unmarshal(ev.Summary, &got))
	assert.Equal(t, s.FailCount, got.FailCount)
}

func TestRun_publishError(t *testing.T) {
	f := newFixture()
	sender := &senderMock{err: errors.New("broker unavailable")}

	s, err := f.runner(WithSender(sender)).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, s.Passed)
	assert.Equal(t, 0, ExitCode(s, err))
	assert.Contains(t, f.stderr.String(), "failed to publish run event: broker unavailable")
}

func TestRun_history(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.log")
	h, err := report.InitHistoryLogger(path)
	require.NoError(t, err)

	f := newFixture()
	_, err = f.runner(WithHistory(h)).Run(context.Background())
	require.NoError(t, err)

	f = newFixture()
	f.stacks.err = errors.New("stack does not exist")
	_, err = f.runner(WithHistory(h)).Run(context.Background())
	require.ErrorIs(t, err, ErrResolution)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "esp32-steel-dev-s3-lambda dev us-west-2 PASS 11 11 0 -")
	assert.Contains(t, lines[1], "esp32-steel-dev-s3-lambda dev us-west-2 FAIL 0 0 0 ")
	assert.Contains(t, lines[1], "stack does not exist")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(&Summary{Passed: true}, nil))
	assert.Equal(t, 1, ExitCode(&Summary{Passed: false}, nil))
	assert.Equal(t, 1, ExitCode(nil, ErrResolution))
	assert.Equal(t, 1, ExitCode(nil, nil))
}
