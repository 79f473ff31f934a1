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
package middleware

import (
	"testing"

	"github.com/caiflower/evhttp/pkg/future"
	golocalv1 "github.com/caiflower/evhttp/pkg/golocal/v1"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	var traceID, attr string
	r := NewRunner(RequestID(""), Terminal(func(req *protocol.Request) *future.Future[*protocol.Response] {
		traceID = golocalv1.GetTraceID()
		attr = req.Attribute(AttrRequestID).(string)
		return ok("")
	}))

	res, err := r.Handle(newRequest(t, nil).WithHeader("X-Request-Id", "abc")).Result()
	require.Nil(t, err)
	assert.Equal(t, "abc", res.Header().Get("X-Request-Id"))
	assert.Equal(t, "abc", traceID)
	assert.Equal(t, "abc", attr)
	assert.NotEqual(t, "abc", golocalv1.GetTraceID())

	res, err = r.Handle(newRequest(t, nil)).Result()
	require.Nil(t, err)
	id := res.Header().Get(DefaultRequestIDHeader)
	assert.Len(t, id, 32)
	assert.Equal(t, id, traceID)
}
