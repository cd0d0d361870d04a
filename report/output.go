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
	"fmt"
	"io"
	"strings"

	"github.com/versity/deployverify/metrics"
)

var (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

const (
	sectionWidth = 50
	dividerWidth = 30
)

// Reporter streams check progress to the console as each check completes
// and keeps the RUN/PASS/FAIL counters for the final summary.
type Reporter struct {
	w       io.Writer
	color   bool
	metrics *metrics.Manager

	RunCount  int
	PassCount int
	FailCount int
}

type Option func(*Reporter)

// WithColor enables ANSI colored RUN/PASS/FAIL markers
func WithColor(c bool) Option {
	return func(r *Reporter) { r.color = c }
}

// WithMetrics forwards every check outcome to the metrics manager
func WithMetrics(m *metrics.Manager) Option {
	return func(r *Reporter) { r.metrics = m }
}

func New(w io.Writer, opts ...Option) *Reporter {
	r := &Reporter{w: w}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) paint(color, s string) string {
	if !r.color {
		return s
	}
	return color + s + colorReset
}

// Start announces a check
func (r *Reporter) Start(name string) {
	r.RunCount++
	fmt.Fprintf(r.w, "%s%s\n", r.paint(colorCyan, "RUN  "), name)
}

// Pass records a passed check of the given metrics module
func (r *Reporter) Pass(module, name, detail string) {
	r.PassCount++
	r.metrics.SendCheck(module, name, true)
	fmt.Fprintf(r.w, "%s%s\n", r.paint(colorGreen, "PASS "), withDetail(name, detail))
}

// Fail records a failed check of the given metrics module
func (r *Reporter) Fail(module, name, detail string) {
	r.FailCount++
	r.metrics.SendCheck(module, name, false)
	fmt.Fprintf(r.w, "%s%s\n", r.paint(colorRed, "FAIL "), withDetail(name, detail))
}

func withDetail(name, detail string) string {
	if detail == "" {
		return name
	}
	return name + ": " + detail
}

// Printf writes a plain line
func (r *Reporter) Printf(format string, a ...any) {
	fmt.Fprintf(r.w, format+"\n", a...)
}

// Section prints a titled block header
func (r *Reporter) Section(title string) {
	fmt.Fprintf(r.w, "\n%s\n%s\n", title, strings.Repeat("=", sectionWidth))
}

// Divider separates the output of consecutive checks
func (r *Reporter) Divider() {
	fmt.Fprintln(r.w, strings.Repeat("-", dividerWidth))
}

// Marker returns the colored PASS/FAIL marker used in summaries
func (r *Reporter) Marker(passed bool) string {
	if passed {
		return r.paint(colorGreen, "PASS")
	}
	return r.paint(colorRed, "FAIL")
}

// PrintTotals prints the RAN/PASS/FAIL counters
func (r *Reporter) PrintTotals() {
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "RAN:", r.RunCount, "PASS:", r.PassCount, "FAIL:", r.FailCount)
}
