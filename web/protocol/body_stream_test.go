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
package protocol

import (
	"errors"
	"testing"

	"github.com/caiflower/evhttp/pkg/nio"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	data   []string
	ends   int
	errs   []error
	closes int
}

func record(s nio.ReadableStream) *recorder {
	r := &recorder{}
	s.OnData(func(p []byte) { r.data = append(r.data, string(p)) })
	s.OnEnd(func() { r.ends++ })
	s.OnError(func(err error) { r.errs = append(r.errs, err) })
	s.OnClose(func() { r.closes++ })
	return r
}

func TestBodyStreamDeclaredLength(t *testing.T) {
	raw := nio.NewThroughStream()
	body := NewBodyStream(raw, 5)
	r := record(body)

	raw.Write([]byte("he"))
	assert.Equal(t, 0, r.ends)
	raw.Write([]byte("llo"))

	assert.Equal(t, []string{"he", "llo"}, r.data)
	assert.Equal(t, 1, r.ends)
	assert.Equal(t, 1, r.closes)
	assert.False(t, raw.IsReadable(), "closing the body closes the raw stream")
	assert.EqualValues(t, 5, body.Size())
}

func TestBodyStreamTruncatesExcess(t *testing.T) {
	raw := nio.NewThroughStream()
	body := NewBodyStream(raw, 3)
	r := record(body)

	raw.Write([]byte("abcdef"))
	raw.Write([]byte("ghi"))

	assert.Equal(t, []string{"abc"}, r.data)
	assert.Equal(t, 1, r.ends)
	assert.Empty(t, r.errs)
	assert.Equal(t, int64(3), body.Excess())

	raw = nio.NewThroughStream()
	exact := NewBodyStream(raw, 3)
	raw.Write([]byte("abc"))
	assert.Equal(t, int64(0), exact.Excess())
}

func TestBodyStreamPrematureEnd(t *testing.T) {
	raw := nio.NewThroughStream()
	body := NewBodyStream(raw, 5)
	r := record(body)

	raw.Write([]byte("he"))
	raw.End(nil)

	assert.Equal(t, 0, r.ends)
	if assert.Len(t, r.errs, 1) {
		var premature *PrematureBodyEndError
		assert.True(t, errors.As(r.errs[0], &premature))
		assert.Contains(t, r.errs[0].Error(), "2/5")
	}
	assert.Equal(t, 1, r.closes)
}

func TestBodyStreamCloseBeforeLength(t *testing.T) {
	raw := nio.NewThroughStream()
	body := NewBodyStream(raw, 10)
	r := record(body)

	raw.Write([]byte("abc"))
	raw.Close()

	assert.Equal(t, []string{"abc"}, r.data)
	assert.Equal(t, 0, r.ends)
	assert.Empty(t, r.errs)
	assert.Equal(t, 1, r.closes)
	assert.False(t, body.IsReadable())
}

func TestBodyStreamUnknownLength(t *testing.T) {
	raw := nio.NewThroughStream()
	body := NewBodyStream(raw, -1)
	r := record(body)

	raw.Write([]byte("a"))
	raw.Write([]byte("b"))
	assert.Equal(t, 0, r.ends)
	raw.End(nil)

	assert.Equal(t, []string{"a", "b"}, r.data)
	assert.Equal(t, 1, r.ends)
	assert.EqualValues(t, 2, body.Position())
	assert.EqualValues(t, -1, body.Size())
}

func TestBodyStreamForwardsErrorAndFlowControl(t *testing.T) {
	raw := nio.NewThroughStream()
	body := NewBodyStream(raw, -1)
	r := record(body)

	body.Pause()
	assert.True(t, raw.Paused())
	body.Resume()
	assert.False(t, raw.Paused())

	raw.EmitError(errors.New("reset"))
	assert.EqualError(t, r.errs[0], "reset")
	assert.Equal(t, 1, r.closes)
	assert.False(t, body.IsReadable())
}

func TestEmptyBody(t *testing.T) {
	b := NewEmptyBody()
	assert.EqualValues(t, 0, b.Size())
	assert.True(t, IsStreaming(b))
	assert.False(t, IsStreaming(NewBufferedBody(nil)))

	closed := 0
	b.OnClose(func() { closed++ })
	b.Close()
	b.Close()
	assert.Equal(t, 1, closed)
	assert.False(t, b.IsReadable())
}
