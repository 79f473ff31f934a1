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

import "errors"

var nilElement = errors.New("no element")

// LinkedList is a doubly linked list. Add methods return the node so that
// it can later be removed in constant time.
type LinkedList[T comparable] struct {
	size  int
	zero  T
	first *Node[T]
	last  *Node[T]
}

type Node[T comparable] struct {
	item T
	prev *Node[T]
	next *Node[T]
	list *LinkedList[T]
}

func (n *Node[T]) Item() T {
	return n.item
}

func (l *LinkedList[T]) AddFirst(item T) *Node[T] {
	n := &Node[T]{item: item, list: l}

	if l.first == nil {
		l.first = n
		l.last = n
	} else {
		n.next = l.first
		l.first.prev = n
		l.first = n
	}

	l.size++
	return n
}

func (l *LinkedList[T]) AddLast(item T) *Node[T] {
	n := &Node[T]{item: item, list: l}

	if l.last == nil {
		l.last = n
		l.first = n
	} else {
		n.prev = l.last
		l.last.next = n
		l.last = n
	}

	l.size++
	return n
}

func (l *LinkedList[T]) RemoveFirst() (T, error) {
	if l.size == 0 {
		return l.zero, nilElement
	}
	item := l.first.item
	l.Remove(l.first)
	return item, nil
}

func (l *LinkedList[T]) RemoveLast() (T, error) {
	if l.size == 0 {
		return l.zero, nilElement
	}
	item := l.last.item
	l.Remove(l.last)
	return item, nil
}

// Remove unlinks n and reports whether it still belonged to the list.
func (l *LinkedList[T]) Remove(n *Node[T]) bool {
	if n == nil || n.list != l {
		return false
	}

	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.first = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.last = n.prev
	}

	n.prev, n.next, n.list = nil, nil, nil
	l.size--
	return true
}

func (l *LinkedList[T]) PeekFirst() (T, error) {
	if l.size == 0 {
		return l.zero, nilElement
	}
	return l.first.item, nil
}

func (l *LinkedList[T]) Size() int {
	return l.size
}

func (l *LinkedList[T]) Contains(item T) bool {
	for p := l.first; p != nil; p = p.next {
		if p.item == item {
			return true
		}
	}
	return false
}

// Each visits items from first to last until fn returns false.
func (l *LinkedList[T]) Each(fn func(item T) bool) {
	for p := l.first; p != nil; {
		next := p.next
		if !fn(p.item) {
			return
		}
		p = next
	}
}
