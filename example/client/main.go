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
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/caiflower/evhttp/client"
	"github.com/caiflower/evhttp/global"
	"github.com/caiflower/evhttp/pkg/nio"
	"github.com/caiflower/evhttp/web/protocol"
)

// usage: client URL [URL...]
// Requests run one after another so that keep-alive connections are reused.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: client URL [URL...]")
		os.Exit(2)
	}

	loop := nio.NewEventLoop("client", nil)
	global.DefaultResourceManger.AddDaemonWithOrder(loop, global.LoopOrder)
	if err := global.DefaultResourceManger.Start(); err != nil {
		panic(err)
	}
	defer global.DefaultResourceManger.Shutdown()

	c, err := client.New(client.DefaultConfig(), loop, nil)
	if err != nil {
		panic(err)
	}
	global.DefaultResourceManger.Add(c)

	for _, url := range os.Args[1:] {
		req, err := protocol.NewRequest(http.MethodGet, url, protocol.Header{}, nil)
		if err != nil {
			fmt.Printf("%s: %s\n", url, err)
			continue
		}
		res, err := c.Do(context.Background(), req)
		if err != nil {
			fmt.Printf("%s: %s\n", url, err)
			continue
		}
		fmt.Printf("%s: %d %s\n%s\n", url, res.StatusCode(), res.ReasonPhrase(), res.Body().(*protocol.BufferedBody).String())
	}
}
