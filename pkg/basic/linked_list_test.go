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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testLinkedList struct {
	Name string
}

func TestLinkedList(t *testing.T) {
	l := LinkedList[int]{}
	l.AddFirst(2)
	l.AddFirst(1)
	l.AddLast(3)
	l.AddLast(4)
	assert.True(t, l.Contains(2))

	for i := 1; i <= 4; i++ {
		first, err := l.RemoveFirst()
		assert.Nil(t, err)
		assert.Equal(t, i, first)
	}

	l.AddFirst(2)
	l.AddFirst(1)
	l.AddLast(3)
	l.AddLast(4)

	for i := 4; i >= 1; i-- {
		last, err := l.RemoveLast()
		assert.Nil(t, err)
		assert.Equal(t, i, last)
	}

	assert.False(t, l.Contains(2))
	_, err := l.RemoveFirst()
	assert.Equal(t, nilElement, err)

	l2 := LinkedList[testLinkedList]{}
	l2.AddFirst(testLinkedList{Name: "1"})
	assert.True(t, l2.Contains(testLinkedList{Name: "1"}))

	l3 := LinkedList[*testLinkedList]{}
	l3.AddFirst(&testLinkedList{Name: "1"})
	assert.False(t, l3.Contains(&testLinkedList{Name: "1"}))
}

func TestLinkedListRemoveNode(t *testing.T) {
	l := LinkedList[string]{}
	a := l.AddLast("a")
	b := l.AddLast("b")
	c := l.AddLast("c")

	assert.True(t, l.Remove(b))
	assert.False(t, l.Remove(b))
	assert.Equal(t, 2, l.Size())

	var items []string
	l.Each(func(item string) bool {
		items = append(items, item)
		return true
	})
	assert.Equal(t, []string{"a", "c"}, items)

	assert.True(t, l.Remove(a))
	assert.True(t, l.Remove(c))
	assert.Equal(t, 0, l.Size())
	_, err := l.PeekFirst()
	assert.NotNil(t, err)

	other := LinkedList[string]{}
	d := other.AddLast("d")
	assert.False(t, l.Remove(d))
}
