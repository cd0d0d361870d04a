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

package metrics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

var (
	// max size of data items to buffer before dropping
	// new incoming data items
	dataItemCount = 10000
)

// Modules reported by the verification run
const (
	ModuleFunctionProbe = "function_probe"
	ModuleStorageAudit  = "storage_audit"
	ModuleRun           = "run"
)

// Tag is added metadata for metrics
type Tag struct {
	// Key is tag name
	Key string
	// Value is tag data
	Value string
}

// Manager is a manager of metrics plugins
type Manager struct {
	wg  sync.WaitGroup
	ctx context.Context

	publishers    []publisher
	addDataChan   chan datapoint
	gaugeDataChan chan datapoint
}

type Config struct {
	StatsdServers    string
	DogStatsdServers string
	// Tags are attached to every datapoint, e.g. environment and project
	Tags []Tag
}

// NewManager initializes metrics plugins and returns a new metrics manager.
// A nil manager is returned when no servers are configured; all Manager
// methods are safe to call on a nil receiver.
func NewManager(ctx context.Context, conf Config) (*Manager, error) {
	if len(conf.StatsdServers) == 0 && len(conf.DogStatsdServers) == 0 {
		return nil, nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}

	var publishers []publisher

	for _, server := range splitServers(conf.StatsdServers) {
		statsd, err := NewStatsd(server, hostname, conf.Tags...)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, statsd)
	}

	for _, server := range splitServers(conf.DogStatsdServers) {
		dd, err := newDogStatsd(server, hostname, conf.Tags...)
		if err != nil {
			for _, p := range publishers {
				p.Close()
			}
			return nil, fmt.Errorf("init dogstatsd %v: %w", server, err)
		}
		publishers = append(publishers, dd)
	}

	return newManager(ctx, publishers...), nil
}

func newManager(ctx context.Context, publishers ...publisher) *Manager {
	mgr := &Manager{
		addDataChan:   make(chan datapoint, dataItemCount),
		gaugeDataChan: make(chan datapoint, dataItemCount),
		ctx:           ctx,
		publishers:    publishers,
	}

	mgr.wg.Add(1)
	go mgr.addForwarder(mgr.addDataChan)
	mgr.wg.Add(1)
	go mgr.gaugeForwarder(mgr.gaugeDataChan)

	return mgr
}

func splitServers(s string) []string {
	var servers []string
	for _, server := range strings.Split(s, ",") {
		server = strings.TrimSpace(server)
		if server != "" {
			servers = append(servers, server)
		}
	}
	return servers
}

// SendCheck records the outcome of a single scenario or property check
func (m *Manager) SendCheck(module, check string, passed bool) {
	if m == nil {
		return
	}
	key := "pass_count"
	if !passed {
		key = "fail_count"
	}
	m.Increment(module, key, Tag{Key: "check", Value: check})
}

// SendRun records the final counters of a verification run
func (m *Manager) SendRun(passed, failed int) {
	if m == nil {
		return
	}
	m.Gauge(ModuleRun, "passed", int64(passed))
	m.Gauge(ModuleRun, "failed", int64(failed))
	if failed == 0 {
		m.Increment(ModuleRun, "success_count")
	} else {
		m.Increment(ModuleRun, "failure_count")
	}
}

// Increment increments the key by one
func (m *Manager) Increment(module, key string, tags ...Tag) {
	m.Add(module, key, 1, tags...)
}

// Add adds value to key
func (m *Manager) Add(module, key string, value int64, tags ...Tag) {
	if m == nil || m.ctx.Err() != nil {
		return
	}

	d := datapoint{
		module: module,
		key:    key,
		value:  value,
		tags:   tags,
	}

	select {
	case m.addDataChan <- d:
	default:
		// channel full, drop the updates
	}
}

// Gauge sets key to value
func (m *Manager) Gauge(module, key string, value int64, tags ...Tag) {
	if m == nil || m.ctx.Err() != nil {
		return
	}

	d := datapoint{
		module: module,
		key:    key,
		value:  value,
		tags:   tags,
	}

	select {
	case m.gaugeDataChan <- d:
	default:
		// channel full, drop the updates
	}
}

// Close closes metrics channels, waits for data to complete, closes all plugins
func (m *Manager) Close() {
	if m == nil {
		return
	}
	// drain the datapoint channels
	close(m.addDataChan)
	close(m.gaugeDataChan)
	m.wg.Wait()

	// close all publishers
	for _, p := range m.publishers {
		p.Close()
	}
}

// publisher is the interface for interacting with the metrics plugins
type publisher interface {
	Add(module, key string, value int64, tags ...Tag)
	Gauge(module, key string, value int64, tags ...Tag)
	Close()
}

func (m *Manager) addForwarder(addChan <-chan datapoint) {
	for data := range addChan {
		for _, s := range m.publishers {
			s.Add(data.module, data.key, data.value, data.tags...)
		}
	}
	m.wg.Done()
}

func (m *Manager) gaugeForwarder(gaugeChan <-chan datapoint) {
	for data := range gaugeChan {
		for _, s := range m.publishers {
			s.Gauge(data.module, data.key, data.value, data.tags...)
		}
	}
	m.wg.Done()
}

type datapoint struct {
	module string
	key    string
	value  int64
	tags   []Tag
}
