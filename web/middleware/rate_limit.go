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
	"math"
	"strconv"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/limiter"
	"github.com/caiflower/evhttp/web/e"
	"github.com/caiflower/evhttp/web/protocol"
)

// RateLimit answers 429 Too Many Requests once more than qps requests per second arrive.
func RateLimit(qps, burst int) Middleware {
	bucket := limiter.NewXTokenBucket(qps, burst)
	return RateLimitWith(bucket, func() float64 {
		return bucket.RetryAfter().Seconds()
	})
}

// RateLimitWith takes one token of l per request. retryAfter, if set, yields the
// Retry-After hint in seconds.
func RateLimitWith(l limiter.Limiter, retryAfter func() float64) Middleware {
	return MiddlewareFunc(func(req *protocol.Request, next Handler) *future.Future[*protocol.Response] {
		if l.TakeTokenNonBlocking() {
			return next(req)
		}

		res := e.Response(e.NewApiError(e.TooManyRequests, "rate limit exceeded", nil))
		if retryAfter != nil {
			seconds := int(math.Ceil(retryAfter()))
			if seconds < 1 {
				seconds = 1
			}
			res = res.WithHeader("Retry-After", strconv.Itoa(seconds))
		}
		return future.Resolved(res)
	})
}
