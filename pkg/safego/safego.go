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

package safego

import (
	"github.com/caiflower/evhttp/pkg/e"
	golocalv1 "github.com/caiflower/evhttp/pkg/golocal/v1"
)

// Go runs fn on a new goroutine that inherits the caller's goroutine-local values.
// A panic in fn is recovered and printed.
func Go(fn func()) {
	local := golocalv1.GetLocalMap()
	go func() {
		golocalv1.PutLocalMap(local)
		defer golocalv1.Clean()
		defer e.OnError("safeGo")

		fn()
	}()
}
