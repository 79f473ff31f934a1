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

// Pipe forwards data from src to dst. src is paused while dst reports backpressure
// and resumed on drain. When end is set, dst is ended once src ends.
// Forwarding stops when dst closes.
func Pipe(src ReadableStream, dst WritableStream, end bool) {
	if !src.IsReadable() {
		return
	}
	if !dst.IsWritable() {
		src.Pause()
		return
	}

	offData := src.OnData(func(p []byte) {
		if !dst.Write(p) {
			src.Pause()
		}
	})
	offDrain := dst.OnDrain(func() {
		src.Resume()
	})

	var offEnd Unsubscribe
	if end {
		offEnd = src.OnEnd(func() {
			dst.End(nil)
		})
	}

	offClose := dst.OnClose(func() {
		offData()
		if offEnd != nil {
			offEnd()
		}
		src.Pause()
	})
	src.OnClose(func() {
		offDrain()
		offClose()
	})
}
