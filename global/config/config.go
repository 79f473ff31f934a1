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
package config

import (
	"os"
	"path/filepath"

	"github.com/caiflower/evhttp/client"
	"github.com/caiflower/evhttp/global/env"
	"github.com/caiflower/evhttp/pkg/logger"
	"github.com/caiflower/evhttp/pkg/tools"
	"github.com/caiflower/evhttp/web"
)

type DefaultConfig struct {
	LoggerConfig logger.Config `yaml:"logger"`
	WebConfig    []web.Config  `yaml:"web"`
	ClientConfig client.Config `yaml:"client"`
}

// fallbackYaml serves a single default web server when no default.yaml exists.
const fallbackYaml = `
web:
  - name: default
`

// LoadDefaultConfig reads default.yaml from the config path. Every web server entry gets its defaults.
// A missing file yields the built-in defaults with one web server.
func LoadDefaultConfig(v *DefaultConfig) (err error) {
	filename := filepath.Join(env.ConfigPath, "default.yaml")
	if _, statErr := os.Stat(filename); os.IsNotExist(statErr) {
		err = tools.LoadConfigBytes([]byte(fallbackYaml), v)
	} else {
		err = tools.LoadConfig(filename, v)
	}
	if err != nil {
		return
	}
	for i := range v.WebConfig {
		if err = tools.DoTagFunc(&v.WebConfig[i], []tools.FnObj{{Fn: tools.SetDefaultValueIfNil}}); err != nil {
			return
		}
	}
	return
}
