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

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const mimeApplicationJSON = "application/json"

// RabbitmqSender publishes run events to a RabbitMQ exchange/queue.
// If exchange is blank the default (empty string) exchange is used.
type RabbitmqSender struct {
	exchange   string
	routingKey string
	conn       *amqp.Connection
	channel    *amqp.Channel
}

func InitRabbitmqSender(url, exchange, routingKey string) (Sender, error) {
	if url == "" {
		return nil, fmt.Errorf("rabbitmq url should be specified")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	testMsg, err := generateTestEvent()
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq generate test event: %w", err)
	}

	pub := amqp.Publishing{Timestamp: time.Now(), ContentType: mimeApplicationJSON, Body: testMsg, MessageId: uuid.NewString()}
	if err := ch.PublishWithContext(context.Background(), exchange, routingKey, false, false, pub); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq publish test event: %w", err)
	}

	return &RabbitmqSender{
		exchange:   exchange,
		routingKey: routingKey,
		conn:       conn,
		channel:    ch,
	}, nil
}

func (rs *RabbitmqSender) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	msg := amqp.Publishing{
		Timestamp:   time.Now(),
		ContentType: mimeApplicationJSON,
		Body:        body,
		MessageId:   uuid.NewString(),
	}

	if err := rs.channel.PublishWithContext(ctx, rs.exchange, rs.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("send rabbitmq event: %w", err)
	}
	return nil
}

func (rs *RabbitmqSender) Close() error {
	var firstErr error
	if rs.channel != nil {
		if err := rs.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if rs.conn != nil {
		if err := rs.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
