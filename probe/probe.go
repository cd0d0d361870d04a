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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/versity/deployverify/debuglogger"
	"github.com/versity/deployverify/metrics"
	"github.com/versity/deployverify/report"
)

// status assumed when the response carries no statusCode
const defaultStatusCode = http.StatusInternalServerError

type Result string

const (
	ResultPass Result = "PASS"
	ResultFail Result = "FAIL"
)

// InvocationResult is the outcome of one scenario. StatusCode and
// Expected are nil when the invocation itself failed.
type InvocationResult struct {
	TestName   string `json:"test"`
	Result     Result `json:"result"`
	StatusCode *int   `json:"status_code,omitempty"`
	Expected   *int   `json:"expected,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (r InvocationResult) Passed() bool {
	return r.Result == ResultPass
}

// AllPassed reports whether every scenario passed
func AllPassed(results []InvocationResult) bool {
	for _, r := range results {
		if !r.Passed() {
			return false
		}
	}
	return true
}

// Invoker is the part of the Lambda API the probe needs
type Invoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Probe runs the scenario battery against a function
type Probe struct {
	client Invoker
	out    *report.Reporter
	now    func() time.Time
}

type Option func(*Probe)

// WithClock overrides the time source used for request ids
func WithClock(now func() time.Time) Option {
	return func(p *Probe) { p.now = now }
}

func New(client Invoker, out *report.Reporter, opts ...Option) *Probe {
	p := &Probe{
		client: client,
		out:    out,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run invokes the function once per scenario, strictly in order, and
// returns one result per scenario. A failing invocation never stops
// the remaining scenarios.
func (p *Probe) Run(ctx context.Context, t Target) ([]InvocationResult, bool) {
	p.out.Section("FUNCTION PROBE")
	p.out.Printf("Function:    %v", t.FunctionName)
	p.out.Printf("Region:      %v", t.Region)
	p.out.Printf("Environment: %v", t.Environment)

	cases := Scenarios(t, p.now())
	results := make([]InvocationResult, 0, len(cases))
	for i, tc := range cases {
		p.out.Printf("\nTest %d: %v", i+1, tc.Name)
		results = append(results, p.runCase(ctx, t.FunctionName, tc))
		p.out.Divider()
	}

	p.printSummary(results)
	return results, AllPassed(results)
}

func (p *Probe) runCase(ctx context.Context, function string, tc TestCase) InvocationResult {
	p.out.Start(tc.Name)

	statusCode, err := p.invoke(ctx, function, tc)
	if err != nil {
		msg := report.Fault(err)
		p.out.Printf("Error: %v", msg)
		p.out.Fail(metrics.ModuleFunctionProbe, tc.Name, "exception: "+msg)
		return InvocationResult{
			TestName: tc.Name,
			Result:   ResultFail,
			Error:    msg,
		}
	}

	expected := tc.ExpectedStatus
	res := InvocationResult{
		TestName:   tc.Name,
		Result:     ResultFail,
		StatusCode: &statusCode,
		Expected:   &expected,
	}

	if Passed(statusCode, expected) {
		res.Result = ResultPass
		p.out.Pass(metrics.ModuleFunctionProbe, tc.Name, "")
	} else {
		p.out.Fail(metrics.ModuleFunctionProbe, tc.Name,
			fmt.Sprintf("expected %v, got %v", expected, statusCode))
	}
	return res
}

func (p *Probe) invoke(ctx context.Context, function string, tc TestCase) (int, error) {
	body, err := json.Marshal(tc.Payload)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}
	p.out.Printf("Payload: %s", indent(body))

	out, err := p.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   &function,
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        body,
	})
	if err != nil {
		return 0, err
	}

	debuglogger.Dump("INVOKE OUTPUT", struct {
		StatusCode      int32
		FunctionError   string
		ExecutedVersion string
	}{out.StatusCode, aws.ToString(out.FunctionError), aws.ToString(out.ExecutedVersion)})

	statusCode, err := statusCodeOf(out.Payload)
	if err != nil {
		return 0, err
	}

	p.out.Printf("Status Code: %v", statusCode)
	p.out.Printf("Response: %s", indent(out.Payload))
	return statusCode, nil
}

// statusCodeOf extracts the statusCode field of a function response.
// The response must be a JSON object; a missing or null statusCode
// yields defaultStatusCode.
func statusCodeOf(payload []byte) (int, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return 0, fmt.Errorf("decode response payload: %w", err)
	}

	raw, ok := fields["statusCode"]
	if !ok || string(raw) == "null" {
		return defaultStatusCode, nil
	}

	var code int
	if err := json.Unmarshal(raw, &code); err != nil {
		return 0, fmt.Errorf("decode statusCode %s: %w", raw, err)
	}
	return code, nil
}

func indent(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}

func (p *Probe) printSummary(results []InvocationResult) {
	p.out.Section("FUNCTION PROBE SUMMARY")

	passed := 0
	for _, r := range results {
		if r.Passed() {
			passed++
		}
		p.out.Printf("%v %v", p.out.Marker(r.Passed()), r.TestName)
	}

	p.out.Printf("\nTotal: %v/%v tests passed", passed, len(results))
}
