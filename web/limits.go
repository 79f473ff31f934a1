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
package web

// MaxBufferedRequestSize caps the size of a request body held in memory.
const MaxBufferedRequestSize = 64 * 1024

// Unlimited is the concurrency limit derived from an unlimited memory budget.
const Unlimited = -1

// MaxRequestSize is the request body size buffered in memory for the given post size limit.
// Zero and negative limits mean the cap.
func MaxRequestSize(postMaxSize int64) int64 {
	if postMaxSize <= 0 || postMaxSize >= MaxBufferedRequestSize {
		return MaxBufferedRequestSize
	}
	return postMaxSize
}

// ConcurrencyLimit is how many requests may buffer a body of maxBodySize at once when
// half of memoryLimit is reserved for buffering. A negative memoryLimit yields Unlimited.
func ConcurrencyLimit(memoryLimit, maxBodySize int64) int {
	if memoryLimit < 0 {
		return Unlimited
	}
	if maxBodySize <= 0 {
		maxBodySize = MaxBufferedRequestSize
	}
	available := memoryLimit / 2
	limit := available / maxBodySize
	if available%maxBodySize != 0 {
		limit++
	}
	if limit < 1 {
		limit = 1
	}
	return int(limit)
}
