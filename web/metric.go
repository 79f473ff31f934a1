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
	"errors"
	"strconv"
	"time"

	"github.com/caiflower/evhttp/global/env"
	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/web/middleware"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

type HttpMetric struct {
	httpRequestTotal     *prometheus.CounterVec
	httpRequestTimeTotal *prometheus.CounterVec
	costHistogram        prometheus.Histogram
	admission            *prometheus.GaugeVec
}

// NewHttpMetric registers the server collectors on r. Collectors already registered
// by another server are shared.
func NewHttpMetric(r prometheus.Registerer) *HttpMetric {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{"ip": env.GetLocalHostIP()}

	buckets := []float64{20, 50, 100, 200, 500, 1000, 2000, 5000, 10000}
	return &HttpMetric{
		httpRequestTimeTotal: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{Name: "http_request_time_total", Help: "http_request_time_total counter", ConstLabels: constLabels}, []string{"web", "code", "method"})),
		httpRequestTotal:     register(r, prometheus.NewCounterVec(prometheus.CounterOpts{Name: "http_request_total", Help: "http_request_total counter", ConstLabels: constLabels}, []string{"web", "code", "method"})),
		costHistogram:        register(r, prometheus.NewHistogram(prometheus.HistogramOpts{Name: "http_request_histogram", Help: "http_request_histogram", Buckets: buckets, ConstLabels: constLabels})),
		admission:            register(r, prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "http_request_admission", Help: "requests admitted past or waiting at the concurrency limit", ConstLabels: constLabels}, []string{"web", "state"})),
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

func (m *HttpMetric) saveMetric(web string, code string, method string, cost int64) {
	m.httpRequestTotal.WithLabelValues(web, code, method).Inc()
	m.httpRequestTimeTotal.WithLabelValues(web, code, method).Add(float64(cost))
	m.costHistogram.Observe(float64(cost))
}

func (m *HttpMetric) saveAdmission(web string, limit *middleware.ConcurrencyLimit) {
	if limit == nil {
		return
	}
	m.admission.WithLabelValues(web, "pending").Set(float64(limit.Pending()))
	m.admission.WithLabelValues(web, "queued").Set(float64(limit.Queued()))
}

// Middleware records the status and the cost in milliseconds of every request.
// Failed requests are counted with code 500.
func (m *HttpMetric) Middleware(web string, limit *middleware.ConcurrencyLimit) middleware.Middleware {
	return middleware.MiddlewareFunc(func(req *protocol.Request, next middleware.Handler) *future.Future[*protocol.Response] {
		start := time.Now()
		result := next(req)
		m.saveAdmission(web, limit)
		result.Then(func(res *protocol.Response, err error) {
			code := "500"
			if err == nil {
				code = strconv.Itoa(res.StatusCode())
			}
			m.saveMetric(web, code, req.Method(), time.Since(start).Milliseconds())
			m.saveAdmission(web, limit)
		})
		return result
	})
}
