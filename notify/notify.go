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

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/versity/deployverify/debuglogger"
	"golang.org/x/sync/errgroup"
)

type EventType string

const (
	EventRunCompleted EventType = "verify:RunCompleted"
	EventTest         EventType = "verify:TestEvent"
)

// Event is published once per verification run
type Event struct {
	EventVersion string          `json:"eventVersion"`
	EventSource  string          `json:"eventSource"`
	EventTime    string          `json:"eventTime"`
	EventName    EventType       `json:"eventName"`
	RunID        string          `json:"runId"`
	Stack        string          `json:"stack"`
	Passed       bool            `json:"passed"`
	Summary      json.RawMessage `json:"summary,omitempty"`
}

// NewRunCompletedEvent wraps a marshaled run summary
func NewRunCompletedEvent(runID, stack string, passed bool, summary []byte, at time.Time) Event {
	return Event{
		EventVersion: "1.0",
		EventSource:  "deployverify",
		EventTime:    at.UTC().Format(time.RFC3339),
		EventName:    EventRunCompleted,
		RunID:        runID,
		Stack:        stack,
		Passed:       passed,
		Summary:      summary,
	}
}

type Sender interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

type Config struct {
	WebhookURL         string
	KafkaURL           string
	KafkaTopic         string
	KafkaTopicKey      string
	NatsURL            string
	NatsTopic          string
	RabbitmqURL        string
	RabbitmqExchange   string
	RabbitmqRoutingKey string
}

// InitSender connects every configured sink. Each sink publishes a test
// event while connecting so a bad configuration fails before the run.
// A nil Sender is returned when nothing is configured.
func InitSender(cfg Config) (Sender, error) {
	var senders Multi

	add := func(s Sender, err error) error {
		if err != nil {
			senders.Close()
			return err
		}
		senders = append(senders, s)
		return nil
	}

	if cfg.WebhookURL != "" {
		debuglogger.Infof("initializing run notifications with webhook URL %v", cfg.WebhookURL)
		if err := add(InitWebhookSender(cfg.WebhookURL)); err != nil {
			return nil, err
		}
	}
	if cfg.KafkaURL != "" {
		debuglogger.Infof("initializing run notifications with kafka. URL: %v, topic: %v", cfg.KafkaURL, cfg.KafkaTopic)
		if err := add(InitKafkaSender(cfg.KafkaURL, cfg.KafkaTopic, cfg.KafkaTopicKey)); err != nil {
			return nil, err
		}
	}
	if cfg.NatsURL != "" {
		debuglogger.Infof("initializing run notifications with Nats. URL: %v, topic: %v", cfg.NatsURL, cfg.NatsTopic)
		if err := add(InitNatsSender(cfg.NatsURL, cfg.NatsTopic)); err != nil {
			return nil, err
		}
	}
	if cfg.RabbitmqURL != "" {
		debuglogger.Infof("initializing run notifications with RabbitMQ. URL: %v, exchange: %v", cfg.RabbitmqURL, cfg.RabbitmqExchange)
		if err := add(InitRabbitmqSender(cfg.RabbitmqURL, cfg.RabbitmqExchange, cfg.RabbitmqRoutingKey)); err != nil {
			return nil, err
		}
	}

	if len(senders) == 0 {
		return nil, nil
	}
	return senders, nil
}

// Multi fans an event out to several senders
type Multi []Sender

// Send publishes to every sender concurrently and joins the errors
func (m Multi) Send(ctx context.Context, ev Event) error {
	errs := make([]error, len(m))

	var eg errgroup.Group
	for i, s := range m {
		eg.Go(func() error {
			errs[i] = s.Send(ctx, ev)
			return nil
		})
	}
	_ = eg.Wait()

	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func generateTestEvent() ([]byte, error) {
	msg := map[string]string{
		"Service": "deployverify",
		"Event":   string(EventTest),
		"Time":    time.Now().Format(time.RFC3339),
	}

	return json.Marshal(msg)
}
