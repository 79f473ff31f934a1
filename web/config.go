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

import (
	"time"

	"github.com/caiflower/evhttp/pkg/tools"
)

type Config struct {
	Name             string        `yaml:"name" default:"default"`
	Addr             string        `yaml:"addr" default:":8080"`
	MemoryLimit      string        `yaml:"memoryLimit" default:"128M"` // budget for buffered request bodies, -1 is unlimited
	PostMaxSize      string        `yaml:"postMaxSize" default:"8M"`
	MaxHeaderSize    string        `yaml:"maxHeaderSize" default:"8K"`
	WriteHighWater   string        `yaml:"writeHighWater" default:"64K"`
	KeepAliveTimeout time.Duration `yaml:"keepAliveTimeout" default:"60s"`
	HeaderTraceID    string        `yaml:"headerTraceID" default:"X-Request-Id"`
	EnableMetrics    bool          `yaml:"enableMetrics"`
	WebLimiter       WebLimiter    `yaml:"webLimiter"`
	Compression      Compression   `yaml:"compression"`
}

// Compression encodes buffered responses of at least MinSize with br or gzip.
type Compression struct {
	Enable  bool   `yaml:"enable"`
	MinSize string `yaml:"minSize" default:"1K"`
}

type WebLimiter struct {
	Enable bool `yaml:"enable"`
	Qps    int  `yaml:"qps" default:"1000"`
	Burst  int  `yaml:"burst" default:"1000"`
}

// LoadConfig reads a yaml server config and applies defaults.
func LoadConfig(filename string) (Config, error) {
	var c Config
	err := tools.LoadConfig(filename, &c)
	return c, err
}

// DefaultConfig is a config with every default applied.
func DefaultConfig() Config {
	var c Config
	_ = tools.DoTagFunc(&c, []tools.FnObj{{Fn: tools.SetDefaultValueIfNil}})
	return c
}

type limits struct {
	concurrency int
	maxBody     int64
	maxHead     int
	highWater   int
	compressMin int64
}

func (c Config) limits() (l limits, err error) {
	memory, err := tools.ParseSize(c.MemoryLimit)
	if err != nil {
		return
	}
	post, err := tools.ParseSize(c.PostMaxSize)
	if err != nil {
		return
	}
	head, err := tools.ParseSize(c.MaxHeaderSize)
	if err != nil {
		return
	}
	water, err := tools.ParseSize(c.WriteHighWater)
	if err != nil {
		return
	}
	if c.Compression.Enable {
		if l.compressMin, err = tools.ParseSize(c.Compression.MinSize); err != nil {
			return
		}
	}

	l.maxBody = MaxRequestSize(post)
	l.concurrency = ConcurrencyLimit(memory, l.maxBody)
	l.maxHead = int(head)
	l.highWater = int(water)
	return
}
