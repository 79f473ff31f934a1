/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package global

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/caiflower/evhttp/pkg/logger"
	"github.com/caiflower/evhttp/pkg/syncx"
)

// DefaultResourceManger starts the daemons of a process, such as event loops and
// web servers, and closes them on shutdown.

type Resource interface {
	Close()
}

type DaemonResource interface {
	Resource
	Name() string
	Start() error
}

// managed is a registered resource. Daemons with a higher order start first and
// every resource closes in reverse start order.
type managed struct {
	resource Resource
	daemon   DaemonResource
	order    int
	seq      int
	started  bool
}

func (m *managed) name() string {
	if m.daemon != nil {
		return m.daemon.Name()
	}
	return fmt.Sprintf("%T", m.resource)
}

const (
	resourceOrder = -1
	DaemonOrder   = 100000
	LoopOrder     = 200000
)

type resourceManger struct {
	lock    sync.Locker
	items   []*managed
	running bool
}

var DefaultResourceManger = NewResourceManger()

func NewResourceManger() *resourceManger {
	return &resourceManger{lock: syncx.NewSpinLock()}
}

// Add registers a resource that is only closed.
func (rm *resourceManger) Add(resource Resource) {
	rm.add(&managed{resource: resource, order: resourceOrder})
}

// AddDaemonWithOrder registers a daemon. Loops use LoopOrder so they run before the servers posting to them.
func (rm *resourceManger) AddDaemonWithOrder(daemon DaemonResource, order int) {
	rm.add(&managed{resource: daemon, daemon: daemon, order: order})
}

func (rm *resourceManger) AddDaemon(daemon DaemonResource) {
	rm.AddDaemonWithOrder(daemon, DaemonOrder)
}

func (rm *resourceManger) add(m *managed) {
	rm.lock.Lock()
	defer rm.lock.Unlock()

	for _, v := range rm.items {
		if v.resource == m.resource {
			return
		}
	}
	m.seq = len(rm.items)
	rm.items = append(rm.items, m)
}

// Start starts every daemon. When one fails, the ones already started are closed.
func (rm *resourceManger) Start() error {
	rm.lock.Lock()
	if rm.running {
		rm.lock.Unlock()
		return nil
	}
	rm.running = true
	sort.SliceStable(rm.items, func(i, j int) bool {
		if rm.items[i].order != rm.items[j].order {
			return rm.items[i].order > rm.items[j].order
		}
		return rm.items[i].seq < rm.items[j].seq
	})
	items := append([]*managed(nil), rm.items...)
	rm.lock.Unlock()

	for _, m := range items {
		if m.daemon == nil {
			continue
		}
		if err := m.daemon.Start(); err != nil {
			logger.Error("[resource] Start '%s' failed. Error: %s", m.name(), err.Error())
			rm.Shutdown()
			return fmt.Errorf("start %s: %w", m.name(), err)
		}
		m.started = true
		logger.Info("[resource] '%s' started.", m.name())
	}
	return nil
}

// Shutdown closes started daemons and plain resources in reverse order.
func (rm *resourceManger) Shutdown() {
	rm.lock.Lock()
	items := append([]*managed(nil), rm.items...)
	rm.running = false
	rm.lock.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		m := items[i]
		if m.daemon != nil && !m.started {
			continue
		}
		m.started = false
		m.resource.Close()
	}
}

// Signal starts every daemon and blocks until the process is asked to stop.
func (rm *resourceManger) Signal() {
	if err := rm.Start(); err != nil {
		logger.Fatal("Signal failed. Error: %s", err.Error())
		return
	}

	sign := make(chan os.Signal, 1)
	signal.Notify(sign, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sign)

	s := <-sign
	logger.Info("Accept signal %s. The application is shutting down...", s)
	rm.Shutdown()
}
