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

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/versity/deployverify/awsconf"
	"github.com/versity/deployverify/debuglogger"
	"github.com/versity/deployverify/metrics"
	"github.com/versity/deployverify/notify"
	"github.com/versity/deployverify/report"
	"github.com/versity/deployverify/verify"
)

var (
	environment string
	region      string
	projectName string
)

// stdout receives the streamed report
var stdout io.Writer = os.Stdout

func main() {
	app := initApp()

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func initApp() *cli.App {
	return &cli.App{
		Name:  "deployverify",
		Usage: "Verify a deployed S3/Lambda stack.",
		Description: `deployverify invokes the deployed URL generator function with a fixed
set of requests and audits the security settings of the firmware and
programs buckets. It exits 0 only when every check passes.`,
		HideHelpCommand: true,
		Flags:           initFlags(),
		Action:          runAction,
	}
}

func initFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "environment",
			Usage:       "deployment environment",
			Value:       "dev",
			Destination: &environment,
			Aliases:     []string{"e"},
		},
		&cli.StringFlag{
			Name:        "region",
			Usage:       "AWS region",
			Value:       "us-west-2",
			Destination: &region,
			Aliases:     []string{"r"},
		},
		&cli.StringFlag{
			Name:        "project-name",
			Usage:       "project name",
			Value:       "esp32-steel",
			Destination: &projectName,
			Aliases:     []string{"p"},
		},
	}
}

func runAction(ctx *cli.Context) error {
	st, err := loadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	code, err := run(ctx.Context, verify.Config{
		Project:     projectName,
		Environment: environment,
		Region:      region,
	}, st)
	if err != nil {
		return err
	}
	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

// newClients builds the AWS service clients for a run
var newClients = func(ctx context.Context, cfg verify.Config, st settings) (verify.Clients, error) {
	opts := []awsconf.Option{
		awsconf.WithRegion(cfg.Region),
		awsconf.WithAccess(st.accessKeyID),
		awsconf.WithSecret(st.secretAccessKey),
	}
	if st.endpoint != "" {
		opts = append(opts, awsconf.WithEndpoint(st.endpoint))
	}
	if st.debug {
		opts = append(opts, awsconf.WithDebug())
	}

	clients, err := awsconf.NewAWSConf(opts...).Clients(ctx)
	if err != nil {
		return verify.Clients{}, fmt.Errorf("init aws clients: %w", err)
	}

	return verify.Clients{
		Stacks:    clients.CloudFormation,
		Functions: clients.Lambda,
		Buckets:   clients.S3,
	}, nil
}

// run performs one verification and returns the process exit code.
// Errors are only returned for setup failures before any check ran.
func run(ctx context.Context, cfg verify.Config, st settings) (int, error) {
	if st.debug {
		debuglogger.SetDebugEnabled()
	}

	clients, err := newClients(ctx, cfg, st)
	if err != nil {
		return 1, err
	}

	st.metrics.Tags = append(st.metrics.Tags,
		metrics.Tag{Key: "environment", Value: cfg.Environment},
		metrics.Tag{Key: "project", Value: cfg.Project},
	)
	mm, err := metrics.NewManager(ctx, st.metrics)
	if err != nil {
		return 1, fmt.Errorf("init metrics: %w", err)
	}
	defer mm.Close()

	sender, err := notify.InitSender(st.notify)
	if err != nil {
		return 1, fmt.Errorf("init run notifications: %w", err)
	}
	if sender != nil {
		defer sender.Close()
	}

	var history *report.HistoryLogger
	if st.historyFile != "" {
		history, err = report.InitHistoryLogger(st.historyFile)
		if err != nil {
			return 1, err
		}
	}

	out := report.New(stdout,
		report.WithColor(!st.noColor),
		report.WithMetrics(mm))

	runOpts := []verify.Option{
		verify.WithMetrics(mm),
		verify.WithReportFile(st.reportFile),
		verify.WithHistory(history),
	}
	if sender != nil {
		runOpts = append(runOpts, verify.WithSender(sender))
	}

	s, err := verify.New(cfg, clients, out, runOpts...).Run(ctx)

	return verify.ExitCode(s, err), nil
}
