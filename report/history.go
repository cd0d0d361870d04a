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
	"os"
	"sync"
	"time"
)

const (
	historyFileMode   = 0600
	historyTimeFormat = "02/January/2006:15:04:05 -0700"
)

// HistoryEntry is one line of the run history log
type HistoryEntry struct {
	Time        time.Time
	RunID       string
	Stack       string
	Environment string
	Region      string
	Ran         int
	Passed      int
	Failed      int
	Success     bool
	Error       string
}

// HistoryLogger appends one line per run to a history file
type HistoryLogger struct {
	path string
	mu   sync.Mutex
}

// InitHistoryLogger creates the history file if it does not exist yet
func InitHistoryLogger(path string) (*HistoryLogger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, historyFileMode)
	if err != nil {
		return nil, fmt.Errorf("open history log: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("open history log: %w", err)
	}

	return &HistoryLogger{path: path}, nil
}

// Log appends an entry. A nil logger discards it.
func (h *HistoryLogger) Log(e HistoryEntry) error {
	if h == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, historyFileMode)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(formatHistory(e)); err != nil {
		return fmt.Errorf("write history log: %w", err)
	}
	return nil
}

func formatHistory(e HistoryEntry) string {
	result := "FAIL"
	if e.Success {
		result = "PASS"
	}

	errMsg := "-"
	if e.Error != "" {
		errMsg = fmt.Sprintf("%q", e.Error)
	}

	return fmt.Sprintf("[%v] %v %v %v %v %v %v %v %v %v\n",
		e.Time.Format(historyTimeFormat),
		orDash(e.RunID),
		orDash(e.Stack),
		orDash(e.Environment),
		orDash(e.Region),
		result,
		e.Ran,
		e.Passed,
		e.Failed,
		errMsg,
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
