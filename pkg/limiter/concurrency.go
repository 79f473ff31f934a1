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
package limiter

import (
	"github.com/caiflower/evhttp/pkg/basic"
	"github.com/caiflower/evhttp/pkg/future"
)

// Concurrency admits at most limit ticket holders at a time and queues the rest in FIFO order.
// It belongs to one event loop and is not goroutine-safe.
type Concurrency struct {
	limit   int
	pending int
	queue   basic.LinkedList[*future.Future[*Ticket]]
}

// Ticket is an admission slot. Release hands it to the oldest waiter.
type Ticket struct {
	owner    *Concurrency
	released bool
}

func NewConcurrency(limit int) *Concurrency {
	if limit < 1 {
		limit = 1
	}
	return &Concurrency{limit: limit}
}

// Acquire resolves immediately while a slot is free, otherwise the returned future waits in line.
// Cancelling a waiting future removes it from the queue.
func (c *Concurrency) Acquire() *future.Future[*Ticket] {
	if c.pending < c.limit && c.queue.Size() == 0 {
		c.pending++
		return future.Resolved(&Ticket{owner: c})
	}

	var node *basic.Node[*future.Future[*Ticket]]
	f := future.New[*Ticket](func() {
		c.queue.Remove(node)
	})
	node = c.queue.AddLast(f)
	return f
}

func (c *Concurrency) admit() {
	for c.pending < c.limit && c.queue.Size() > 0 {
		f, _ := c.queue.RemoveFirst()
		c.pending++
		f.Resolve(&Ticket{owner: c})
	}
}

func (c *Concurrency) Limit() int {
	return c.limit
}

// Pending is the number of tickets currently held.
func (c *Concurrency) Pending() int {
	return c.pending
}

// Queued is the number of waiters.
func (c *Concurrency) Queued() int {
	return c.queue.Size()
}

// Release frees the slot. Releasing twice is a no-op.
func (t *Ticket) Release() {
	if t.released {
		return
	}
	t.released = true
	t.owner.pending--
	t.owner.admit()
}
