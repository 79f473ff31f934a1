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
package http1

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/caiflower/evhttp/pkg/nio"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestEncodeChunk(t *testing.T) {
	assert.Nil(t, EncodeChunk(nil))
	assert.Nil(t, EncodeChunk([]byte{}))
	assert.Equal(t, "5\r\nhello\r\n", string(EncodeChunk([]byte("hello"))))
	assert.Equal(t, "1a\r\nabcdefghijklmnopqrstuvwxyz\r\n", string(EncodeChunk([]byte("abcdefghijklmnopqrstuvwxyz"))))
	assert.Equal(t, "100\r\n", string(EncodeChunk(make([]byte, 256))[:5]))
}

func TestChunkedEncoderEndsOnce(t *testing.T) {
	src := &source{}
	enc := NewChunkedEncoder(src)

	var out bytes.Buffer
	ends, closes := 0, 0
	enc.OnData(func(p []byte) { out.Write(p) })
	enc.OnEnd(func() { ends++ })
	enc.OnClose(func() { closes++ })

	src.EmitData([]byte("hello"))
	src.EmitData(nil)
	src.EmitData([]byte("world!"))
	src.EmitEnd()
	src.EmitData([]byte("late"))
	src.EmitEnd()

	assert.Equal(t, "5\r\nhello\r\n6\r\nworld!\r\n0\r\n\r\n", out.String())
	assert.Equal(t, 1, strings.Count(out.String(), "0\r\n\r\n"))
	assert.Equal(t, 1, ends)
	assert.Equal(t, 1, closes)
	assert.Equal(t, 1, src.closed)
}

func TestChunkedEncoderFlowControlAndError(t *testing.T) {
	src := &source{}
	enc := NewChunkedEncoder(src)

	enc.Pause()
	enc.Resume()
	assert.Equal(t, 1, src.paused)
	assert.Equal(t, 1, src.resumed)

	var errs []error
	closes := 0
	enc.OnError(func(err error) { errs = append(errs, err) })
	enc.OnClose(func() { closes++ })

	src.EmitError(errors.New("boom"))
	src.EmitClose()
	assert.Len(t, errs, 1)
	assert.Equal(t, 1, closes)
	assert.False(t, enc.IsReadable())
}

func decodeAll(t *testing.T, d *ChunkDecoder, parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		chunks, err := d.Feed(p)
		if !assert.Nil(t, err) {
			return out
		}
		for _, c := range chunks {
			out = append(out, c...)
		}
	}
	return out
}

func TestChunkDecoderRoundTripAnySplit(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	var wire []byte
	for _, part := range [][]byte{payload[:3], payload[3:20], payload[20:]} {
		wire = append(wire, EncodeChunk(part)...)
	}
	wire = append(wire, chunkTerminator...)

	for i := 0; i <= len(wire); i++ {
		d := NewChunkDecoder()
		got := decodeAll(t, d, wire[:i], wire[i:])
		if diff := cmp.Diff(payload, got); diff != "" {
			t.Fatalf("split at %d (-want +got):\n%s", i, diff)
		}
		assert.True(t, d.Done(), "split at %d", i)
	}

	d := NewChunkDecoder()
	var got []byte
	for i := range wire {
		got = append(got, decodeAll(t, d, wire[i:i+1])...)
	}
	assert.Empty(t, cmp.Diff(payload, got))
	assert.True(t, d.Done())
}

func TestChunkDecoderKeepsOrder(t *testing.T) {
	d := NewChunkDecoder()
	chunks, err := d.Feed([]byte("1\r\na\r\n2\r\nbc\r\n3\r\nde"))
	assert.Nil(t, err)
	want := []string{"a", "bc", "de"}
	var got []string
	for _, c := range chunks {
		got = append(got, string(c))
	}
	assert.Equal(t, want, got)
	assert.False(t, d.Done())

	chunks, err = d.Feed([]byte("f\r\n0\r\n\r\nignored"))
	assert.Nil(t, err)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "f", string(chunks[0]))
	assert.True(t, d.Done())
}

func TestChunkDecoderExtensionsAndTrailers(t *testing.T) {
	d := NewChunkDecoder()
	out := decodeAll(t, d, []byte("5;name=value\r\nhello\r\n0;last\r\nX-Checksum: abc\r\nX-Other:  1 \r\n\r\n"))
	assert.Equal(t, "hello", string(out))
	assert.True(t, d.Done())
	assert.Equal(t, "abc", d.Trailers().Get("x-checksum"))
	assert.Equal(t, "1", d.Trailers().Get("X-Other"))
}

func TestChunkDecoderRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"non hex size":     "zz\r\n",
		"missing size":     "\r\n",
		"empty before ext": ";ext\r\n",
		"too many digits":  "1000000000000000\r\n",
		"size line length": "1;" + strings.Repeat("x", maxChunkSizeLine) + "\r\n",
		"bare LF size":     "3\nabc\r\n",
		"bad data CRLF":    "3\r\nabcXY",
		"bad data LF":      "3\r\nabc\rX",
		"bad trailer":      "0\r\nno colon\r\n\r\n",
	}
	for name, wire := range cases {
		t.Run(name, func(t *testing.T) {
			d := NewChunkDecoder()
			_, err := d.Feed([]byte(wire))
			var framing *protocol.FramingError
			assert.True(t, errors.As(err, &framing), "got %v", err)

			_, again := d.Feed([]byte("0\r\n\r\n"))
			assert.Equal(t, err, again)
		})
	}
}

func TestChunkDecoderBuffersPartialSizeLine(t *testing.T) {
	d := NewChunkDecoder()
	chunks, err := d.Feed([]byte("1"))
	assert.Nil(t, err)
	assert.Empty(t, chunks)
	chunks, err = d.Feed([]byte("0\r"))
	assert.Nil(t, err)
	assert.Empty(t, chunks)
	chunks, err = d.Feed([]byte("\n" + strings.Repeat("x", 16) + "\r\n"))
	assert.Nil(t, err)
	assert.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 16)
}

func TestChunkDecoderExcess(t *testing.T) {
	d := NewChunkDecoder()
	chunks, err := d.Feed([]byte("3\r\nabc\r\n0\r\n\r\nHTTP"))
	assert.Nil(t, err)
	assert.Len(t, chunks, 1)
	assert.True(t, d.Done())
	assert.Equal(t, int64(4), d.Excess())

	_, err = d.Feed([]byte("/1"))
	assert.Nil(t, err)
	assert.Equal(t, int64(6), d.Excess())

	clean := NewChunkDecoder()
	_, _ = clean.Feed([]byte("0\r\n\r\n"))
	assert.Equal(t, int64(0), clean.Excess())
}

func TestChunkedDecoderStream(t *testing.T) {
	raw := nio.NewThroughStream()
	dec := NewChunkedDecoder(raw)

	var out []string
	ends, closes := 0, 0
	dec.OnData(func(p []byte) { out = append(out, string(p)) })
	dec.OnEnd(func() { ends++ })
	dec.OnClose(func() { closes++ })

	raw.Write([]byte("3\r\nfoo\r\n"))
	raw.Write([]byte("3\r\nbar\r\n0\r"))
	assert.Equal(t, 0, ends)
	raw.Write([]byte("\n\r\n"))

	assert.Equal(t, []string{"foo", "bar"}, out)
	assert.Equal(t, 1, ends)
	assert.Equal(t, 1, closes)
	assert.False(t, raw.IsReadable())
}

func TestChunkedDecoderPrematureEnd(t *testing.T) {
	raw := nio.NewThroughStream()
	dec := NewChunkedDecoder(raw)

	var errs []error
	ends, closes := 0, 0
	dec.OnEnd(func() { ends++ })
	dec.OnError(func(err error) { errs = append(errs, err) })
	dec.OnClose(func() { closes++ })

	raw.Write([]byte("5\r\nhel"))
	raw.End(nil)

	assert.Equal(t, 0, ends)
	if assert.Len(t, errs, 1) {
		var framing *protocol.FramingError
		assert.True(t, errors.As(errs[0], &framing))
	}
	assert.Equal(t, 1, closes)
}

func TestChunkedDecoderFramingErrorClosesInput(t *testing.T) {
	raw := nio.NewThroughStream()
	dec := NewChunkedDecoder(raw)

	var errs []error
	dec.OnError(func(err error) { errs = append(errs, err) })

	raw.Write([]byte("xyz\r\n"))
	assert.Len(t, errs, 1)
	assert.False(t, raw.IsReadable())
	assert.False(t, dec.IsReadable())

	dec.Pause()
	assert.True(t, raw.Paused())
}
