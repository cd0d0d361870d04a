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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/versity/deployverify/audit"
	"github.com/versity/deployverify/debuglogger"
	"github.com/versity/deployverify/metrics"
	"github.com/versity/deployverify/notify"
	"github.com/versity/deployverify/probe"
	"github.com/versity/deployverify/report"
	"github.com/versity/deployverify/stackout"
)

// ErrResolution is returned when the resources under test cannot be
// discovered. Nothing is checked in that case.
var ErrResolution = errors.New("resolve stack outputs")

const reportFileMode = 0644

// Config identifies the deployment under test
type Config struct {
	Project     string
	Environment string
	Region      string
}

// Clients are the external collaborators of a run
type Clients struct {
	Stacks    stackout.DescribeStacksAPI
	Functions probe.Invoker
	Buckets   audit.BucketAPI
}

// Summary is the complete outcome of one run
type Summary struct {
	RunID       string                   `json:"run_id"`
	Project     string                   `json:"project"`
	Environment string                   `json:"environment"`
	Region      string                   `json:"region"`
	Stack       string                   `json:"stack"`
	StartedAt   time.Time                `json:"started_at"`
	FinishedAt  time.Time                `json:"finished_at"`
	Targets     stackout.Targets         `json:"targets"`
	Invocations []probe.InvocationResult `json:"invocations"`
	Checks      []audit.CheckResult      `json:"checks"`

	FunctionProbePassed bool `json:"function_probe_passed"`
	StorageAuditPassed  bool `json:"storage_audit_passed"`
	Passed              bool `json:"passed"`

	Ran       int `json:"ran"`
	PassCount int `json:"pass_count"`
	FailCount int `json:"fail_count"`
}

// Runner resolves the deployment, runs the function probe and the
// storage audit one after the other and aggregates the outcome
type Runner struct {
	cfg        Config
	clients    Clients
	out        *report.Reporter
	metrics    *metrics.Manager
	sender     notify.Sender
	history    *report.HistoryLogger
	reportFile string
	now        func() time.Time
	stderr     io.Writer
}

type Option func(*Runner)

// WithMetrics publishes the final run counters
func WithMetrics(m *metrics.Manager) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithSender publishes a run completed event after the run
func WithSender(s notify.Sender) Option {
	return func(r *Runner) { r.sender = s }
}

// WithHistory appends a line per run, resolution failures included
func WithHistory(h *report.HistoryLogger) Option {
	return func(r *Runner) { r.history = h }
}

// WithReportFile writes the run summary as JSON to path
func WithReportFile(path string) Option {
	return func(r *Runner) { r.reportFile = path }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithErrorOutput sets where post-run delivery errors are written
func WithErrorOutput(w io.Writer) Option {
	return func(r *Runner) { r.stderr = w }
}

func New(cfg Config, clients Clients, out *report.Reporter, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		clients: clients,
		out:     out,
		now:     time.Now,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one verification run. The returned error is only set
// for setup failures, failed checks are reported through Summary.Passed.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	started := r.now()
	stack := stackout.StackName(r.cfg.Project, r.cfg.Environment)

	targets, err := r.resolve(ctx, stack)
	if err != nil {
		r.out.Printf("Error getting stack outputs: %v", report.Fault(err))
		r.out.Printf("Make sure the S3-Lambda stack is deployed")
		r.logHistory(report.HistoryEntry{
			Time:        started,
			Stack:       stack,
			Environment: r.cfg.Environment,
			Region:      r.cfg.Region,
			Error:       report.Fault(err),
		})
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}

	s := &Summary{
		RunID:       ulid.MustNew(ulid.Timestamp(started), ulid.DefaultEntropy()).String(),
		Project:     r.cfg.Project,
		Environment: r.cfg.Environment,
		Region:      r.cfg.Region,
		Stack:       stack,
		StartedAt:   started,
		Targets:     targets,
	}
	debuglogger.Infof("run %v against stack %v", s.RunID, stack)
	debuglogger.PrintFields("STACK OUTPUTS", map[string]string{
		stackout.KeyFunctionName:   targets.FunctionName,
		stackout.KeyFirmwareBucket: targets.FirmwareBucket,
		stackout.KeyProgramsBucket: targets.ProgramsBucket,
	}, stackout.KeyFunctionName, stackout.KeyFirmwareBucket, stackout.KeyProgramsBucket)

	s.Invocations, s.FunctionProbePassed = probe.New(r.clients.Functions, r.out, probe.WithClock(r.now)).
		Run(ctx, probe.Target{
			FunctionName: targets.FunctionName,
			Region:       r.cfg.Region,
			Environment:  r.cfg.Environment,
			Project:      r.cfg.Project,
		})

	s.Checks, s.StorageAuditPassed = audit.New(r.clients.Buckets, r.out).
		Run(ctx, targets.FirmwareBucket, targets.ProgramsBucket)

	s.Passed = s.FunctionProbePassed && s.StorageAuditPassed
	s.Ran, s.PassCount, s.FailCount = r.out.RunCount, r.out.PassCount, r.out.FailCount
	s.FinishedAt = r.now()

	r.printOverall(s)
	r.metrics.SendRun(s.PassCount, s.FailCount)
	r.logHistory(report.HistoryEntry{
		Time:        s.FinishedAt,
		RunID:       s.RunID,
		Stack:       s.Stack,
		Environment: s.Environment,
		Region:      s.Region,
		Ran:         s.Ran,
		Passed:      s.PassCount,
		Failed:      s.FailCount,
		Success:     s.Passed,
	})
	r.deliver(ctx, s)

	return s, nil
}

func (r *Runner) resolve(ctx context.Context, stack string) (stackout.Targets, error) {
	outputs, err := stackout.Lookup(ctx, r.clients.Stacks, stack)
	if err != nil {
		return stackout.Targets{}, err
	}
	return outputs.Targets()
}

func (r *Runner) printOverall(s *Summary) {
	r.out.Section("OVERALL TEST RESULTS")
	r.out.Printf("Function probe: %v", r.out.Marker(s.FunctionProbePassed))
	r.out.Printf("Storage audit:  %v", r.out.Marker(s.StorageAuditPassed))
	r.out.PrintTotals()

	if s.Passed {
		r.out.Printf("All tests passed!")
	} else {
		r.out.Printf("Some tests failed!")
	}
}

func (r *Runner) logHistory(e report.HistoryEntry) {
	if err := r.history.Log(e); err != nil {
		fmt.Fprintf(r.stderr, "failed to log run history: %v\n", err)
	}
}

// deliver writes the report file and publishes the run event. Delivery
// problems are reported but never change the run outcome.
func (r *Runner) deliver(ctx context.Context, s *Summary) {
	if r.reportFile == "" && r.sender == nil {
		return
	}

	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		fmt.Fprintf(r.stderr, "failed to encode run summary: %v\n", err)
		return
	}

	if r.reportFile != "" {
		if err := os.WriteFile(r.reportFile, body, reportFileMode); err != nil {
			fmt.Fprintf(r.stderr, "failed to write report file: %v\n", err)
		}
	}

	if r.sender != nil {
		ev := notify.NewRunCompletedEvent(s.RunID, s.Stack, s.Passed, body, s.FinishedAt)
		if err := r.sender.Send(ctx, ev); err != nil {
			fmt.Fprintf(r.stderr, "failed to publish run event: %v\n", err)
		}
	}
}

// ExitCode maps a run outcome to the process exit status
func ExitCode(s *Summary, err error) int {
	if err != nil || s == nil || !s.Passed {
		return 1
	}
	return 0
}
