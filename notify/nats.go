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
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const natsFlushTimeout = 3 * time.Second

type NatsSender struct {
	topic  string
	client *nats.Conn
}

func InitNatsSender(url, topic string) (Sender, error) {
	if topic == "" {
		return nil, fmt.Errorf("nats message topic should be specified")
	}

	client, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}

	msg, err := generateTestEvent()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("nats generate test event: %w", err)
	}

	err = client.Publish(topic, msg)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("nats publish test event: %w", err)
	}

	return &NatsSender{
		topic:  topic,
		client: client,
	}, nil
}

func (ns *NatsSender) Send(_ context.Context, ev Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("parse event data: %w", err)
	}

	if err := ns.client.Publish(ns.topic, msg); err != nil {
		return fmt.Errorf("send nats event: %w", err)
	}
	// the process exits right after the run, make sure the event left
	if err := ns.client.FlushTimeout(natsFlushTimeout); err != nil {
		return fmt.Errorf("flush nats event: %w", err)
	}
	return nil
}

func (ns *NatsSender) Close() error {
	ns.client.Close()
	return nil
}
