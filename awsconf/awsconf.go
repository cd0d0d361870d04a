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

package awsconf

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AWSConf holds the settings shared by every AWS client the verifier uses.
// Credentials come from the default provider chain unless both an access
// key and a secret are given.
type AWSConf struct {
	awsID     string
	awsSecret string
	awsRegion string
	endpoint  string
	pathStyle bool
	debug     bool
}

func NewAWSConf(opts ...Option) *AWSConf {
	c := &AWSConf{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*AWSConf)

func WithAccess(ak string) Option {
	return func(c *AWSConf) { c.awsID = ak }
}
func WithSecret(sk string) Option {
	return func(c *AWSConf) { c.awsSecret = sk }
}
func WithRegion(r string) Option {
	return func(c *AWSConf) { c.awsRegion = r }
}

// WithEndpoint points every client at a custom endpoint, e.g. LocalStack.
// S3 requests then use path style addressing.
func WithEndpoint(e string) Option {
	return func(c *AWSConf) {
		c.endpoint = e
		c.pathStyle = e != ""
	}
}
func WithDebug() Option {
	return func(c *AWSConf) { c.debug = true }
}

func (c *AWSConf) loadOptions() ([]func(*config.LoadOptions) error, error) {
	// every call is attempted exactly once
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(c.awsRegion),
		config.WithRetryMaxAttempts(1),
	}

	switch {
	case c.awsID != "" && c.awsSecret != "":
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.awsID, c.awsSecret, "")))
	case c.awsID != "" || c.awsSecret != "":
		return nil, fmt.Errorf("both access key id and secret access key must be set")
	}

	if c.debug {
		opts = append(opts,
			config.WithClientLogMode(aws.LogSigning|aws.LogRetries|aws.LogRequest|aws.LogResponse))
	}

	return opts, nil
}

// Config resolves the shared aws.Config
func (c *AWSConf) Config(ctx context.Context) (aws.Config, error) {
	opts, err := c.loadOptions()
	if err != nil {
		return aws.Config{}, err
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}

	if c.endpoint != "" {
		cfg.BaseEndpoint = &c.endpoint
	}

	return cfg, nil
}

// Clients are the service clients used for one verification run
type Clients struct {
	CloudFormation *cloudformation.Client
	Lambda         *lambda.Client
	S3             *s3.Client
}

func (c *AWSConf) Clients(ctx context.Context) (*Clients, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}

	return &Clients{
		CloudFormation: cloudformation.NewFromConfig(cfg),
		Lambda:         lambda.NewFromConfig(cfg),
		S3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = c.pathStyle
		}),
	}, nil
}
