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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const webhookTimeout = 3 * time.Second

type Webhook struct {
	url    string
	client *http.Client
}

func InitWebhookSender(url string) (Sender, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url should be specified")
	}

	client := &http.Client{
		Timeout: webhookTimeout,
	}

	testEv, err := generateTestEvent()
	if err != nil {
		return nil, fmt.Errorf("webhook generate test event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(testEv))
	if err != nil {
		return nil, fmt.Errorf("create webhook http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	// the test event must be accepted, a rejected one means a bad url
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send webhook test event: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("send webhook test event: unexpected status %v", resp.Status)
	}

	return &Webhook{
		client: client,
		url:    url,
	}, nil
}

func (w *Webhook) Send(ctx context.Context, ev Event) error {
	eventBytes, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("parse event data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(eventBytes))
	if err != nil {
		return fmt.Errorf("create webhook event request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Event-Id", uuid.NewString())

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("send webhook event: unexpected status %v", resp.Status)
	}
	return nil
}

func (w *Webhook) Close() error {
	return nil
}
