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

package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/versity/deployverify/debuglogger"
	"github.com/versity/deployverify/metrics"
	"github.com/versity/deployverify/report"
)

// Property is a bucket hardening property
type Property string

const (
	PublicAccessBlocked Property = "public_access_blocked"
	EncryptionEnabled   Property = "encryption_enabled"
	VersioningEnabled   Property = "versioning_enabled"
)

// Properties is the evaluation order. Each property is checked on every
// bucket before the next property starts.
var Properties = []Property{
	PublicAccessBlocked,
	EncryptionEnabled,
	VersioningEnabled,
}

// BucketAPI is the part of the S3 API the auditor needs
type BucketAPI interface {
	GetPublicAccessBlock(ctx context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
	GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
}

// CheckResult is the outcome of one property check on one bucket
type CheckResult struct {
	Bucket   string   `json:"bucket"`
	Property Property `json:"property"`
	Passed   bool     `json:"passed"`
	Error    string   `json:"error,omitempty"`
}

func (c CheckResult) name() string {
	return fmt.Sprintf("%v/%v", c.Bucket, c.Property)
}

// AllPassed reports whether every check passed
func AllPassed(results []CheckResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

type check struct {
	query   func(ctx context.Context, api BucketAPI, bucket string) (bool, error)
	pass    string
	fail    string
	errVerb string
}

var checks = map[Property]check{
	PublicAccessBlocked: {
		query:   queryPublicAccessBlock,
		pass:    "Public access properly blocked",
		fail:    "Public access not fully blocked",
		errVerb: "checking public access block",
	},
	EncryptionEnabled: {
		query:   queryEncryption,
		pass:    "Encryption enabled",
		fail:    "Encryption not properly configured",
		errVerb: "checking encryption",
	},
	VersioningEnabled: {
		query:   queryVersioning,
		pass:    "Versioning enabled",
		fail:    "Versioning not enabled",
		errVerb: "checking versioning",
	},
}

// Auditor checks bucket hardening properties
type Auditor struct {
	client BucketAPI
	out    *report.Reporter
}

func New(client BucketAPI, out *report.Reporter) *Auditor {
	return &Auditor{
		client: client,
		out:    out,
	}
}

// Run checks every property on every bucket, property by property.
// A failing query marks only its own check as failed.
func (a *Auditor) Run(ctx context.Context, firmwareBucket, programsBucket string) ([]CheckResult, bool) {
	a.out.Section("STORAGE POLICY AUDIT")
	a.out.Printf("Firmware Bucket: %v", firmwareBucket)
	a.out.Printf("Programs Bucket: %v", programsBucket)

	buckets := []string{firmwareBucket, programsBucket}
	results := make([]CheckResult, 0, len(Properties)*len(buckets))
	for _, prop := range Properties {
		for _, bucket := range buckets {
			results = append(results, a.runCheck(ctx, bucket, prop))
		}
	}

	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	a.out.Printf("\nS3 Security Tests: %v/%v passed", passed, len(results))

	return results, AllPassed(results)
}

func (a *Auditor) runCheck(ctx context.Context, bucket string, prop Property) CheckResult {
	c := checks[prop]
	res := CheckResult{Bucket: bucket, Property: prop}
	a.out.Start(res.name())

	ok, err := c.query(ctx, a.client, bucket)
	switch {
	case err != nil:
		res.Error = faultMessage(err)
		a.out.Fail(metrics.ModuleStorageAudit, res.name(),
			fmt.Sprintf("Error %v: %v", c.errVerb, res.Error))
	case ok:
		res.Passed = true
		a.out.Pass(metrics.ModuleStorageAudit, res.name(), c.pass)
	default:
		a.out.Fail(metrics.ModuleStorageAudit, res.name(), c.fail)
	}
	return res
}

func queryPublicAccessBlock(ctx context.Context, api BucketAPI, bucket string) (bool, error) {
	out, err := api.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{
		Bucket: &bucket,
	})
	if err != nil {
		return false, err
	}
	debuglogger.Dump("PUBLIC ACCESS BLOCK "+bucket, out.PublicAccessBlockConfiguration)
	return PublicAccessBlockedBy(out.PublicAccessBlockConfiguration), nil
}

func queryEncryption(ctx context.Context, api BucketAPI, bucket string) (bool, error) {
	out, err := api.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{
		Bucket: &bucket,
	})
	if err != nil {
		return false, err
	}
	debuglogger.Dump("ENCRYPTION "+bucket, out.ServerSideEncryptionConfiguration)
	return EncryptionEnabledBy(out.ServerSideEncryptionConfiguration), nil
}

func queryVersioning(ctx context.Context, api BucketAPI, bucket string) (bool, error) {
	out, err := api.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{
		Bucket: &bucket,
	})
	if err != nil {
		return false, err
	}
	debuglogger.Logf("bucket %v versioning status: %q", bucket, out.Status)
	return VersioningEnabledBy(out.Status), nil
}

// PublicAccessBlockedBy reports whether all four public access
// block flags are set. Unset flags count as false.
func PublicAccessBlockedBy(cfg *types.PublicAccessBlockConfiguration) bool {
	if cfg == nil {
		return false
	}
	return aws.ToBool(cfg.BlockPublicAcls) &&
		aws.ToBool(cfg.BlockPublicPolicy) &&
		aws.ToBool(cfg.IgnorePublicAcls) &&
		aws.ToBool(cfg.RestrictPublicBuckets)
}

// EncryptionEnabledBy reports whether the first encryption rule
// applies a default algorithm
func EncryptionEnabledBy(cfg *types.ServerSideEncryptionConfiguration) bool {
	if cfg == nil || len(cfg.Rules) == 0 {
		return false
	}
	def := cfg.Rules[0].ApplyServerSideEncryptionByDefault
	return def != nil && def.SSEAlgorithm != ""
}

// VersioningEnabledBy reports whether status is exactly Enabled
func VersioningEnabledBy(status types.BucketVersioningStatus) bool {
	return status == types.BucketVersioningStatusEnabled
}

// well known error codes returned when a bucket has no configuration
// of the queried kind
var missingConfigMessages = map[string]string{
	"NoSuchPublicAccessBlockConfiguration":           "no public access block configuration",
	"ServerSideEncryptionConfigurationNotFoundError": "no server side encryption configuration",
	"NoSuchBucket":                                   "bucket does not exist",
	"AccessDenied":                                   "access denied",
}

func faultMessage(err error) string {
	msg := report.Fault(err)

	var ae smithy.APIError
	if errors.As(err, &ae) {
		if desc, ok := missingConfigMessages[ae.ErrorCode()]; ok {
			return fmt.Sprintf("%v (%v)", desc, msg)
		}
	}
	return msg
}
