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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_ENDPOINT_URL", "")
}

func TestAWSConf_Config(t *testing.T) {
	isolateEnv(t)

	c := NewAWSConf(
		WithRegion("us-west-2"),
		WithAccess("AKIDEXAMPLE"),
		WithSecret("secret"),
		WithEndpoint("http://localhost:4566"),
	)

	cfg, err := c.Config(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, 1, cfg.RetryMaxAttempts)
	require.NotNil(t, cfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *cfg.BaseEndpoint)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func TestAWSConf_Config_debugLogMode(t *testing.T) {
	isolateEnv(t)

	cfg, err := NewAWSConf(WithRegion("eu-west-1"), WithDebug()).Config(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.ClientLogMode.IsRequest())
	assert.True(t, cfg.ClientLogMode.IsResponse())
	assert.Nil(t, cfg.BaseEndpoint)
}

func TestAWSConf_Config_partialCredentials(t *testing.T) {
	isolateEnv(t)

	tests := []struct {
		name string
		opts []Option
	}{
		{"access only", []Option{WithAccess("AKIDEXAMPLE")}},
		{"secret only", []Option{WithSecret("secret")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAWSConf(tt.opts...).Config(context.Background())
			assert.EqualError(t, err, "both access key id and secret access key must be set")
		})
	}
}

func TestAWSConf_Clients(t *testing.T) {
	isolateEnv(t)

	clients, err := NewAWSConf(WithRegion("us-west-2"), WithEndpoint("http://localhost:4566")).
		Clients(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, clients.CloudFormation)
	assert.NotNil(t, clients.Lambda)
	assert.NotNil(t, clients.S3)
	assert.True(t, clients.S3.Options().UsePathStyle)
}
