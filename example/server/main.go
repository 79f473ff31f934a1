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
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caiflower/evhttp/global"
	"github.com/caiflower/evhttp/global/config"
	"github.com/caiflower/evhttp/global/env"
	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/logger"
	"github.com/caiflower/evhttp/pkg/tools"
	"github.com/caiflower/evhttp/web"
	"github.com/caiflower/evhttp/web/middleware"
	"github.com/caiflower/evhttp/web/protocol"
)

func hello(req *protocol.Request) *future.Future[*protocol.Response] {
	size := int64(0)
	if body, ok := req.Body().(*protocol.BufferedBody); ok {
		size = body.Size()
	}
	data := tools.ToJson(map[string]interface{}{
		"method":    req.Method(),
		"path":      req.URI().Path,
		"bodySize":  size,
		"requestId": req.Attribute(middleware.AttrRequestID),
		"time":      time.Now().Format(time.RFC3339),
	})
	header := protocol.NewHeader("Content-Type", "application/json")
	return future.Resolved(protocol.NewResponse(http.StatusOK, header, protocol.NewBufferedBodyString(data)))
}

func main() {
	configPath := flag.String("config", env.ConfigPath, "directory holding default.yaml")
	flag.Parse()
	env.SetDefaultConfigPath(*configPath)

	var c config.DefaultConfig
	if err := config.LoadDefaultConfig(&c); err != nil {
		fmt.Printf("load default config from %s failed. Error: %s\n", env.ConfigPath, err)
		os.Exit(1)
	}
	logger.InitLogger(&c.LoggerConfig)

	for _, cfg := range c.WebConfig {
		server, err := web.NewHttpServer(cfg, middleware.Terminal(hello))
		if err != nil {
			panic(err)
		}
		global.DefaultResourceManger.AddDaemon(server)
	}
	global.DefaultResourceManger.Signal()
}
