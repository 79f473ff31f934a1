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
package client

import (
	"time"

	"github.com/caiflower/evhttp/pkg/tools"
)

type Config struct {
	ConnectTimeout  time.Duration `yaml:"connectTimeout" default:"10s"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" default:"60s"`   // idle keep-alive connections are closed after it
	Timeout         time.Duration `yaml:"timeout" default:"30s"`       // whole exchange in Do, retries included
	MaxResponseSize string        `yaml:"maxResponseSize" default:"16M"`
	WriteHighWater  string        `yaml:"writeHighWater" default:"64K"`
	DecodeContent   bool          `yaml:"decodeContent"`                // decode gzip and br response bodies
	DisableRetry    bool          `yaml:"disableRetry"`
	MaxRetries      int           `yaml:"maxRetries" default:"3"`
	EnableMetrics   bool          `yaml:"enableMetrics"`
}

func DefaultConfig() Config {
	var c Config
	_ = tools.DoTagFunc(&c, []tools.FnObj{{Fn: tools.SetDefaultValueIfNil}})
	return c
}

func (c Config) sizes() (maxResponse int64, highWater int, err error) {
	if maxResponse, err = tools.ParseSize(c.MaxResponseSize); err != nil {
		return
	}
	water, err := tools.ParseSize(c.WriteHighWater)
	return maxResponse, int(water), err
}
