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
	"errors"

	"github.com/caiflower/evhttp/global/env"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	eventConnect = "connect"
	eventReuse   = "reuse"
	eventEvict   = "evict"
	eventFailed  = "failed"
)

type poolMetric struct {
	connections *prometheus.CounterVec
	idle        prometheus.Gauge
}

func newPoolMetric(r prometheus.Registerer) *poolMetric {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{"ip": env.GetLocalHostIP()}
	return &poolMetric{
		connections: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{Name: "http_client_connection_total", Help: "http_client_connection_total counter", ConstLabels: constLabels}, []string{"origin", "event"})),
		idle:        register(r, prometheus.NewGauge(prometheus.GaugeOpts{Name: "http_client_idle_connections", Help: "idle keep-alive connections in the pool", ConstLabels: constLabels})),
	}
}

func register[T prometheus.Collector](r prometheus.Registerer, c T) T {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *poolMetric) inc(origin, event string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(origin, event).Inc()
}

func (m *poolMetric) setIdle(n int) {
	if m == nil {
		return
	}
	m.idle.Set(float64(n))
}
