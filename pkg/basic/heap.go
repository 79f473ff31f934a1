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
package basic

// Heap is a binary heap ordered by Less. The element for which Less holds against
// every other element is at the top.
type Heap[T any] struct {
	arr  []T
	zero T
	Less func(a, b T) bool
}

func NewHeap[T any](less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{Less: less}
}

func (h *Heap[T]) Offer(e T) {
	h.arr = append(h.arr, e)
	h.up(len(h.arr) - 1)
}

func (h *Heap[T]) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.Less(h.arr[i], h.arr[p]) {
			return
		}
		h.arr[i], h.arr[p] = h.arr[p], h.arr[i]
		i = p
	}
}

func (h *Heap[T]) down(i int) {
	n := len(h.arr)
	for {
		t := i
		if l := i*2 + 1; l < n && h.Less(h.arr[l], h.arr[t]) {
			t = l
		}
		if r := i*2 + 2; r < n && h.Less(h.arr[r], h.arr[t]) {
			t = r
		}
		if t == i {
			return
		}
		h.arr[i], h.arr[t] = h.arr[t], h.arr[i]
		i = t
	}
}

func (h *Heap[T]) Poll() (T, error) {
	n := len(h.arr)
	if n == 0 {
		return h.zero, nilElement
	}

	res := h.arr[0]
	h.arr[0] = h.arr[n-1]
	h.arr[n-1] = h.zero
	h.arr = h.arr[:n-1]
	if len(h.arr) > 0 {
		h.down(0)
	}
	return res, nil
}

func (h *Heap[T]) Peek() (T, error) {
	if len(h.arr) == 0 {
		return h.zero, nilElement
	}
	return h.arr[0], nil
}

func (h *Heap[T]) Size() int {
	return len(h.arr)
}
