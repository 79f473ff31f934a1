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
	"fmt"

	"github.com/caiflower/evhttp/pkg/future"
)

var (
	ErrInvalidRequestTarget         = errors.New("invalid request URL given")
	ErrRequestBodyClosedPrematurely = errors.New("request failed because request body closed unexpectedly")
	ErrClosedResource               = errors.New("unable to operate on closed resource")
	ErrCancelled                    = future.ErrCancelled
)

// FramingError reports malformed chunked transfer coding.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "invalid chunked encoding: " + e.Reason
}

// PrematureBodyEndError reports a body that ended before its declared length.
type PrematureBodyEndError struct {
	Received int64
	Expected int64
}

func (e *PrematureBodyEndError) Error() string {
	return fmt.Sprintf("unexpected end of body after %d/%d bytes", e.Received, e.Expected)
}

// RequestBodyError wraps an error raised by an outgoing request body.
type RequestBodyError struct {
	Cause error
}

func (e *RequestBodyError) Error() string {
	return "request failed because request body reported an error"
}

func (e *RequestBodyError) Unwrap() error {
	return e.Cause
}

// HandlerError wraps a failure that escaped the request handler chain.
type HandlerError struct {
	Cause error
}

func (e *HandlerError) Error() string {
	return "request handler failed: " + e.Cause.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// ResponseTooLargeError reports a buffered response body above the configured maximum.
type ResponseTooLargeError struct {
	Size int64
	Max  int64
}

func (e *ResponseTooLargeError) Error() string {
	return fmt.Sprintf("response body size of %d bytes exceeds maximum of %d bytes", e.Size, e.Max)
}
