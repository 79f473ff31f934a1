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
package nio

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
)

var ErrInvalidOrigin = errors.New("invalid request URL given")

// Origin identifies the endpoint a connection is opened to.
type Origin struct {
	Scheme string
	Host   string
	Port   int
}

// OriginOf derives the origin of an absolute http or https URL. Missing ports default to 80 and 443.
func OriginOf(u *url.URL) (Origin, error) {
	if u == nil {
		return Origin{}, ErrInvalidOrigin
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Origin{}, ErrInvalidOrigin
	}
	host := u.Hostname()
	if host == "" {
		return Origin{}, ErrInvalidOrigin
	}

	port := 80
	if scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return Origin{}, ErrInvalidOrigin
		}
		port = n
	}
	return Origin{Scheme: scheme, Host: strings.ToLower(host), Port: port}, nil
}

func (o Origin) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o Origin) TLS() bool {
	return o.Scheme == "https"
}

// DefaultPort reports whether the port is the scheme's default.
func (o Origin) DefaultPort() bool {
	return (o.Scheme == "http" && o.Port == 80) || (o.Scheme == "https" && o.Port == 443)
}

func (o Origin) String() string {
	return o.Scheme + "://" + o.Address()
}
