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

	"github.com/segmentio/kafka-go"
)

type Kafka struct {
	key    string
	writer *kafka.Writer
}

func InitKafkaSender(url, topic, key string) (Sender, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka message topic should be specified")
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      []string{url},
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 5 * time.Millisecond,
	})

	msg, err := generateTestEvent()
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("kafka generate test event: %w", err)
	}

	err = w.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(key),
		Value: msg,
	})
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("kafka publish test event: %w", err)
	}

	return &Kafka{
		key:    key,
		writer: w,
	}, nil
}

func (ks *Kafka) Send(ctx context.Context, ev Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("parse event data: %w", err)
	}

	key := ks.key
	if key == "" {
		key = ev.RunID
	}

	err = ks.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: msg,
	})
	if err != nil {
		return fmt.Errorf("send kafka event: %w", err)
	}
	return nil
}

func (ks *Kafka) Close() error {
	return ks.writer.Close()
}
