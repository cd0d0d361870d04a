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
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Fault renders an error raised by an external call as a one line message.
// AWS API errors are reduced to "<operation>: <code>: <message>".
func Fault(err error) string {
	if err == nil {
		return ""
	}

	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return err.Error()
	}

	msg := ae.ErrorCode()
	if msg == "" {
		return err.Error()
	}
	if ae.ErrorMessage() != "" {
		msg = fmt.Sprintf("%v: %v", msg, ae.ErrorMessage())
	}

	var oe *smithy.OperationError
	if errors.As(err, &oe) {
		msg = fmt.Sprintf("%v: %v", oe.Operation(), msg)
	}
	return msg
}
