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
	"io"
)

var ErrNegativePosition = errors.New("unable to seek to a negative position")

// BufferedBody is an in-memory body with a cursor. Writes past the end pad the gap with zero bytes.
// Once closed, every operation fails with ErrClosedResource and Size reports -1.
type BufferedBody struct {
	buf    []byte
	pos    int64
	closed bool
}

func NewBufferedBody(p []byte) *BufferedBody {
	buf := make([]byte, len(p))
	copy(buf, p)
	return &BufferedBody{buf: buf}
}

func NewBufferedBodyString(s string) *BufferedBody {
	return &BufferedBody{buf: []byte(s)}
}

func (b *BufferedBody) Size() int64 {
	if b.closed {
		return -1
	}
	return int64(len(b.buf))
}

func (b *BufferedBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosedResource
	}
	if b.pos >= int64(len(b.buf)) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += int64(n)
	return n, nil
}

// Contents returns everything after the cursor and moves the cursor to the end.
func (b *BufferedBody) Contents() ([]byte, error) {
	if b.closed {
		return nil, ErrClosedResource
	}
	if b.pos >= int64(len(b.buf)) {
		return []byte{}, nil
	}
	rest := make([]byte, int64(len(b.buf))-b.pos)
	copy(rest, b.buf[b.pos:])
	b.pos = int64(len(b.buf))
	return rest, nil
}

func (b *BufferedBody) Write(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosedResource
	}
	if gap := b.pos - int64(len(b.buf)); gap > 0 {
		b.buf = append(b.buf, make([]byte, gap)...)
	}
	end := b.pos + int64(len(p))
	if end > int64(len(b.buf)) {
		b.buf = append(b.buf[:b.pos], p...)
	} else {
		copy(b.buf[b.pos:end], p)
	}
	b.pos = end
	return len(p), nil
}

func (b *BufferedBody) Seek(offset int64, whence int) (int64, error) {
	if b.closed {
		return 0, ErrClosedResource
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = b.pos + offset
	case io.SeekEnd:
		target = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("invalid seek whence")
	}
	if target < 0 {
		return 0, ErrNegativePosition
	}
	b.pos = target
	return target, nil
}

func (b *BufferedBody) Rewind() error {
	_, err := b.Seek(0, io.SeekStart)
	return err
}

func (b *BufferedBody) Tell() (int64, error) {
	if b.closed {
		return 0, ErrClosedResource
	}
	return b.pos, nil
}

func (b *BufferedBody) Eof() bool {
	return b.pos >= int64(len(b.buf))
}

// Bytes returns the whole buffer without moving the cursor.
func (b *BufferedBody) Bytes() []byte {
	if b.closed {
		return nil
	}
	return b.buf
}

// String rewinds and returns the whole buffer, or "" once closed.
func (b *BufferedBody) String() string {
	if b.closed {
		return ""
	}
	b.pos = int64(len(b.buf))
	return string(b.buf)
}

func (b *BufferedBody) Close() error {
	b.closed = true
	b.buf = nil
	b.pos = 0
	return nil
}

func (b *BufferedBody) Closed() bool {
	return b.closed
}
