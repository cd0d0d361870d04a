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

// Package stackout discovers the live resource identifiers published as
// CloudFormation stack outputs.
package stackout

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/versity/deployverify/debuglogger"
)

// Output keys published by the S3/Lambda stack
const (
	KeyFunctionName   = "URLGeneratorFunctionName"
	KeyFirmwareBucket = "FirmwareBucketName"
	KeyProgramsBucket = "SteelProgramsBucketName"
)

type DescribeStacksAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// StackName returns the name of the S3/Lambda stack deployed for
// the project environment
func StackName(project, environment string) string {
	return fmt.Sprintf("%v-%v-s3-lambda", project, environment)
}

// Outputs maps output keys to their values
type Outputs map[string]string

// Lookup fetches the declared outputs of the named stack
func Lookup(ctx context.Context, api DescribeStacksAPI, stackName string) (Outputs, error) {
	out, err := api.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: &stackName,
	})
	if err != nil {
		return nil, fmt.Errorf("describe stack %v: %w", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("stack %v not found", stackName)
	}

	outputs := Outputs{}
	for _, o := range out.Stacks[0].Outputs {
		if o.OutputKey == nil {
			continue
		}
		outputs[*o.OutputKey] = aws.ToString(o.OutputValue)
	}

	debuglogger.Logf("stack %v status %v, %v outputs", stackName, out.Stacks[0].StackStatus, len(outputs))
	return outputs, nil
}

// Targets are the resources under test
type Targets struct {
	FunctionName   string
	FirmwareBucket string
	ProgramsBucket string
}

// Targets extracts the resources under test; every key must be present
func (o Outputs) Targets() (Targets, error) {
	var missing []string
	get := func(key string) string {
		v, ok := o[key]
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	t := Targets{
		FunctionName:   get(KeyFunctionName),
		FirmwareBucket: get(KeyFirmwareBucket),
		ProgramsBucket: get(KeyProgramsBucket),
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Targets{}, fmt.Errorf("missing stack outputs: %v", strings.Join(missing, ", "))
	}
	return t, nil
}
