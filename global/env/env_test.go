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
package env

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLocalHostIP(t *testing.T) {
	ip := GetLocalHostIP()
	if ip == "" {
		t.Skip("no non-loopback IPv4 address")
	}
	parsed := net.ParseIP(ip)
	if assert.NotNil(t, parsed) {
		assert.NotNil(t, parsed.To4())
		assert.False(t, parsed.IsLoopback())
	}
}

func TestSetDefaultConfigPath(t *testing.T) {
	prev := ConfigPath
	defer SetDefaultConfigPath(prev)

	SetDefaultConfigPath("/tmp/conf")
	assert.Equal(t, "/tmp/conf", ConfigPath)
}
