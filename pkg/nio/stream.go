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

// ReadableStream is a push source of byte chunks.
//
// A stream emits any number of data events followed by at most one end or error,
// then exactly one close. Pause asks the source to stop emitting data; sources
// that cannot stop immediately may still deliver events that were already in flight.
type ReadableStream interface {
	OnData(fn func(p []byte)) Unsubscribe
	OnEnd(fn func()) Unsubscribe
	OnError(fn func(err error)) Unsubscribe
	OnClose(fn func()) Unsubscribe
	IsReadable() bool
	Pause()
	Resume()
	Close()
}

// WritableStream is a byte sink with backpressure.
//
// Write returns false when the caller should stop writing until the next drain event.
// End writes the optional final chunk and closes the stream once everything is flushed.
type WritableStream interface {
	OnDrain(fn func()) Unsubscribe
	OnError(fn func(err error)) Unsubscribe
	OnClose(fn func()) Unsubscribe
	IsWritable() bool
	Write(p []byte) bool
	End(p []byte)
	Close()
}

type DuplexStream interface {
	ReadableStream
	WritableStream
}
