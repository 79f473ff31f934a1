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
package e

import (
	"net/http"
	"strconv"

	"github.com/caiflower/evhttp/pkg/tools"
	"github.com/caiflower/evhttp/web/protocol"
)

type ApiError interface {
	GetCode() int
	GetType() string
	GetMessage() string
	GetCause() error
}

type apiError struct {
	Code    int    `json:"-"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *apiError) GetCode() int {
	return e.Code
}

func (e *apiError) GetType() string {
	return e.Type
}

func (e *apiError) GetMessage() string {
	return e.Message
}

func (e *apiError) GetCause() error {
	return e.Cause
}

func (e *apiError) Error() string {
	if e.Cause != nil {
		return e.Type + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Type + ": " + e.Message
}

func (e *apiError) Unwrap() error {
	return e.Cause
}

type ErrorCode struct {
	Code int
	Type string
}

var (
	InvalidArgument      = &ErrorCode{Code: http.StatusBadRequest, Type: "InvalidArgument"}
	TooManyRequests      = &ErrorCode{Code: http.StatusTooManyRequests, Type: "TooManyRequests"}
	HeaderFieldsTooLarge = &ErrorCode{Code: http.StatusRequestHeaderFieldsTooLarge, Type: "HeaderFieldsTooLarge"}
	Internal             = &ErrorCode{Code: http.StatusInternalServerError, Type: "InternalError"}
	NotImplemented       = &ErrorCode{Code: http.StatusNotImplemented, Type: "NotImplemented"}
	VersionNotSupported  = &ErrorCode{Code: http.StatusHTTPVersionNotSupported, Type: "VersionNotSupported"}

	codes = map[int]*ErrorCode{}
)

func init() {
	for _, c := range []*ErrorCode{InvalidArgument, TooManyRequests, HeaderFieldsTooLarge, Internal, NotImplemented, VersionNotSupported} {
		codes[c.Code] = c
	}
}

// CodeOf returns the error code registered for an HTTP status, or Internal when there is none.
func CodeOf(status int) *ErrorCode {
	if c, ok := codes[status]; ok {
		return c
	}
	return Internal
}

func NewApiError(errCode *ErrorCode, msg string, err error) ApiError {
	return &apiError{
		Code:    errCode.Code,
		Type:    errCode.Type,
		Message: msg,
		Cause:   err,
	}
}

type errorBody struct {
	Error ApiError `json:"error"`
}

// Response renders err as a JSON error document with the status of its code.
func Response(err ApiError) *protocol.Response {
	body := []byte(tools.ToJson(errorBody{Error: err}))
	header := protocol.NewHeader(
		"Content-Type", "application/json; charset=utf-8",
		"Content-Length", strconv.Itoa(len(body)),
	)
	return protocol.NewResponse(err.GetCode(), header, protocol.NewBufferedBody(body))
}
