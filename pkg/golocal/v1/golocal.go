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
package v1

import (
	"sync"

	"github.com/modern-go/gls"
)

const (
	RequestID = "X-Request-ID"
)

var localMap sync.Map

// GoID returns the id of the calling goroutine.
func GoID() int64 {
	return gls.GoID()
}

func getMapByGoID(goID int64) *sync.Map {
	value, _ := localMap.Load(goID)
	if value == nil {
		_tmp := &sync.Map{}
		localMap.Store(goID, _tmp)
		return _tmp
	}
	return value.(*sync.Map)
}

func GetLocalMap() *sync.Map {
	return getMapByGoID(GoID())
}

func PutLocalMap(_map *sync.Map) {
	localMap.Store(GoID(), _map)
}

func PutTraceID(value string) {
	getMapByGoID(GoID()).Store(RequestID, value)
}

func GetTraceID() string {
	if v, ok := getMapByGoID(GoID()).Load(RequestID); ok {
		return v.(string)
	}
	return ""
}

// WithTraceID runs fn with the trace id set and restores the previous one afterwards.
// The event loop runs many requests on one goroutine, so ids must not leak between callbacks.
func WithTraceID(value string, fn func()) {
	m := getMapByGoID(GoID())
	prev, had := m.Load(RequestID)
	m.Store(RequestID, value)
	defer func() {
		if had {
			m.Store(RequestID, prev)
		} else {
			m.Delete(RequestID)
		}
	}()
	fn()
}

func Clean() {
	localMap.Delete(GoID())
}
