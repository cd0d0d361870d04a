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
	"github.com/spf13/viper"
	"github.com/versity/deployverify/metrics"
	"github.com/versity/deployverify/notify"
)

const envPrefix = "DEPLOYVERIFY"

// settings are the non-flag options, read from DEPLOYVERIFY_* variables
type settings struct {
	debug           bool
	noColor         bool
	endpoint        string
	accessKeyID     string
	secretAccessKey string
	reportFile      string
	historyFile     string
	metrics         metrics.Config
	notify          notify.Config
}

var envKeys = []string{
	"debug",
	"no_color",
	"endpoint",
	"access_key_id",
	"secret_access_key",
	"report_file",
	"history_file",
	"statsd_servers",
	"dogstatsd_servers",
	"webhook_url",
	"kafka_url",
	"kafka_topic",
	"kafka_key",
	"nats_url",
	"nats_topic",
	"rabbitmq_url",
	"rabbitmq_exchange",
	"rabbitmq_routing_key",
}

func loadSettings() (settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return settings{}, err
		}
	}

	return settings{
		debug:           v.GetBool("debug"),
		noColor:         v.GetBool("no_color"),
		endpoint:        v.GetString("endpoint"),
		accessKeyID:     v.GetString("access_key_id"),
		secretAccessKey: v.GetString("secret_access_key"),
		reportFile:      v.GetString("report_file"),
		historyFile:     v.GetString("history_file"),
		metrics: metrics.Config{
			StatsdServers:    v.GetString("statsd_servers"),
			DogStatsdServers: v.GetString("dogstatsd_servers"),
		},
		notify: notify.Config{
			WebhookURL:         v.GetString("webhook_url"),
			KafkaURL:           v.GetString("kafka_url"),
			KafkaTopic:         v.GetString("kafka_topic"),
			KafkaTopicKey:      v.GetString("kafka_key"),
			NatsURL:            v.GetString("nats_url"),
			NatsTopic:          v.GetString("nats_topic"),
			RabbitmqURL:        v.GetString("rabbitmq_url"),
			RabbitmqExchange:   v.GetString("rabbitmq_exchange"),
			RabbitmqRoutingKey: v.GetString("rabbitmq_routing_key"),
		},
	}, nil
}
