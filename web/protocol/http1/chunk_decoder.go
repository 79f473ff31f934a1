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

	"github.com/caiflower/evhttp/pkg/nio"
	"github.com/caiflower/evhttp/web/protocol"
)

const (
	maxChunkSizeLine = 1024
	maxChunkSizeHex  = 15
	maxChunkTrailers = 8 * 1024
)

type chunkState int

const (
	stateSize chunkState = iota
	stateExtension
	stateSizeLF
	stateData
	stateDataCR
	stateDataLF
	stateTrailer
	stateDone
)

// ChunkDecoder is an incremental parser of chunked transfer coding.
// Input may be split at any byte; incomplete state is carried to the next Feed.
type ChunkDecoder struct {
	state     chunkState
	size      int64
	digits    int
	lineLen   int
	remaining int64
	line      []byte
	trailer   []byte
	trailers  protocol.Header
	excess    int64
	err       error
}

func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{}
}

// Feed consumes p and returns the payload segments it completed, in order.
// The returned slices alias p. Bytes after the final CRLF are ignored and counted by Excess.
func (d *ChunkDecoder) Feed(p []byte) ([][]byte, error) {
	if d.err != nil {
		return nil, d.err
	}

	var out [][]byte
	i := 0
	for i < len(p) && d.state != stateDone {
		c := p[i]
		switch d.state {
		case stateSize, stateExtension:
			d.lineLen++
			if d.lineLen > maxChunkSizeLine {
				return out, d.fail("chunk size line too long")
			}
			switch {
			case c == '\r':
				if d.digits == 0 {
					return out, d.fail("missing chunk size")
				}
				d.state = stateSizeLF
			case d.state == stateExtension:
			case c == ';' || c == ' ' || c == '\t':
				if d.digits == 0 {
					return out, d.fail("missing chunk size")
				}
				d.state = stateExtension
			default:
				v, ok := unhex(c)
				if !ok {
					return out, d.fail("invalid chunk size")
				}
				d.digits++
				if d.digits > maxChunkSizeHex {
					return out, d.fail("chunk size too large")
				}
				d.size = d.size<<4 | int64(v)
			}
			i++
		case stateSizeLF:
			if c != '\n' {
				return out, d.fail("chunk size line not terminated by CRLF")
			}
			i++
			if d.size == 0 {
				d.state = stateTrailer
				continue
			}
			d.remaining = d.size
			d.state = stateData
		case stateData:
			n := int64(len(p) - i)
			if n > d.remaining {
				n = d.remaining
			}
			out = append(out, p[i:i+int(n)])
			i += int(n)
			d.remaining -= n
			if d.remaining == 0 {
				d.state = stateDataCR
			}
		case stateDataCR:
			if c != '\r' {
				return out, d.fail("chunk data not terminated by CRLF")
			}
			d.state = stateDataLF
			i++
		case stateDataLF:
			if c != '\n' {
				return out, d.fail("chunk data not terminated by CRLF")
			}
			d.reset()
			i++
		case stateTrailer:
			i++
			if c != '\n' {
				d.line = append(d.line, c)
				if len(d.trailer)+len(d.line) > maxChunkTrailers {
					return out, d.fail("trailers too large")
				}
				continue
			}
			line := bytes.TrimSuffix(d.line, []byte{'\r'})
			d.line = d.line[:0]
			if len(line) == 0 {
				d.state = stateDone
				continue
			}
			if err := d.addTrailer(line); err != nil {
				return out, err
			}
		}
	}
	d.excess += int64(len(p) - i)
	return out, nil
}

// Excess is the number of bytes fed after the end of the chunked body.
func (d *ChunkDecoder) Excess() int64 {
	return d.excess
}

// Done reports whether the terminal chunk and the trailer section were consumed.
func (d *ChunkDecoder) Done() bool {
	return d.state == stateDone
}

// Trailers returns the trailer fields seen after the terminal chunk.
func (d *ChunkDecoder) Trailers() protocol.Header {
	return d.trailers
}

func (d *ChunkDecoder) reset() {
	d.state = stateSize
	d.size = 0
	d.digits = 0
	d.lineLen = 0
}

func (d *ChunkDecoder) addTrailer(line []byte) error {
	d.trailer = append(d.trailer, line...)
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 || !isToken(line[:colon]) {
		return d.fail("malformed trailer field")
	}
	value := bytes.TrimSpace(line[colon+1:])
	d.trailers = d.trailers.WithAdded(string(line[:colon]), string(value))
	return nil
}

func (d *ChunkDecoder) fail(reason string) error {
	d.err = &protocol.FramingError{Reason: reason}
	return d.err
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ChunkedDecoder emits the decoded payload of a chunked input stream.
// It ends once the terminal chunk is read; an input end before that is a FramingError.
type ChunkedDecoder struct {
	nio.Emitter
	input   nio.ReadableStream
	decoder *ChunkDecoder
	closed  bool
}

func NewChunkedDecoder(input nio.ReadableStream) *ChunkedDecoder {
	c := &ChunkedDecoder{input: input, decoder: NewChunkDecoder()}

	input.OnData(c.handleData)
	input.OnEnd(c.handleEnd)
	input.OnError(c.handleError)
	input.OnClose(c.Close)
	return c
}

func (c *ChunkedDecoder) IsReadable() bool {
	return !c.closed && c.input.IsReadable()
}

func (c *ChunkedDecoder) Pause() {
	c.input.Pause()
}

func (c *ChunkedDecoder) Resume() {
	c.input.Resume()
}

// Trailers returns the trailer fields once the decoder has ended.
func (c *ChunkedDecoder) Trailers() protocol.Header {
	return c.decoder.Trailers()
}

// Excess is the number of input bytes that followed the terminal chunk.
func (c *ChunkedDecoder) Excess() int64 {
	return c.decoder.Excess()
}

func (c *ChunkedDecoder) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.input.Close()

	c.EmitClose()
	c.RemoveAllListeners()
}

func (c *ChunkedDecoder) handleData(p []byte) {
	if c.closed {
		return
	}

	chunks, err := c.decoder.Feed(p)
	for _, chunk := range chunks {
		if c.closed {
			return
		}
		c.EmitData(chunk)
	}
	if c.closed {
		return
	}
	if err != nil {
		c.handleError(err)
		return
	}
	if c.decoder.Done() {
		c.EmitEnd()
		c.Close()
	}
}

func (c *ChunkedDecoder) handleEnd() {
	if c.closed {
		return
	}
	c.handleError(&protocol.FramingError{Reason: "unexpected end of chunked stream"})
}

func (c *ChunkedDecoder) handleError(err error) {
	if c.closed {
		return
	}
	c.EmitError(err)
	c.Close()
}
