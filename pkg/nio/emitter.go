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
package nio

// Unsubscribe removes the listener it was returned for. Calling it twice is a no-op.
type Unsubscribe func()

type entry[F any] struct {
	fn      F
	removed bool
}

type listeners[F any] struct {
	items []*entry[F]
}

func (l *listeners[F]) add(fn F) Unsubscribe {
	e := &entry[F]{fn: fn}
	l.items = append(l.items, e)
	return func() {
		if e.removed {
			return
		}
		e.removed = true
		kept := make([]*entry[F], 0, len(l.items))
		for _, v := range l.items {
			if v != e {
				kept = append(kept, v)
			}
		}
		l.items = kept
	}
}

// each calls fn for the listeners registered when the emit started.
func (l *listeners[F]) each(fn func(F)) {
	items := l.items
	for _, v := range items {
		if !v.removed {
			fn(v.fn)
		}
	}
}

func (l *listeners[F]) reset() {
	for _, v := range l.items {
		v.removed = true
	}
	l.items = nil
}

// Emitter holds the listener lists of a stream.
type Emitter struct {
	data    listeners[func([]byte)]
	end     listeners[func()]
	err     listeners[func(error)]
	closing listeners[func()]
	drain   listeners[func()]
}

func (e *Emitter) OnData(fn func(p []byte)) Unsubscribe {
	return e.data.add(fn)
}

func (e *Emitter) OnEnd(fn func()) Unsubscribe {
	return e.end.add(fn)
}

func (e *Emitter) OnError(fn func(err error)) Unsubscribe {
	return e.err.add(fn)
}

func (e *Emitter) OnClose(fn func()) Unsubscribe {
	return e.closing.add(fn)
}

func (e *Emitter) OnDrain(fn func()) Unsubscribe {
	return e.drain.add(fn)
}

func (e *Emitter) EmitData(p []byte) {
	e.data.each(func(fn func([]byte)) { fn(p) })
}

func (e *Emitter) EmitEnd() {
	e.end.each(func(fn func()) { fn() })
}

func (e *Emitter) EmitError(err error) {
	e.err.each(func(fn func(error)) { fn(err) })
}

func (e *Emitter) EmitClose() {
	e.closing.each(func(fn func()) { fn() })
}

func (e *Emitter) EmitDrain() {
	e.drain.each(func(fn func()) { fn() })
}

// DataListeners is the number of registered data listeners.
func (e *Emitter) DataListeners() int {
	return len(e.data.items)
}

func (e *Emitter) RemoveAllListeners() {
	e.data.reset()
	e.end.reset()
	e.err.reset()
	e.closing.reset()
	e.drain.reset()
}
