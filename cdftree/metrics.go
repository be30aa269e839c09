/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cdftree

import (
	"sync/atomic"
	"time"
)

// TransformKind names the direction of a batch transform.
type TransformKind int

const (
	// Forward maps raw values to CDF scores.
	Forward TransformKind = iota
	// Inverse maps CDF scores back to raw values.
	Inverse
)

func (k TransformKind) String() string {
	switch k {
	case Forward:
		return "forward"
	case Inverse:
		return "inverse"
	default:
		return "unknown"
	}
}

// MetricsCollector receives one call per engine operation.
// Implement it to bridge into a monitoring system.
type MetricsCollector interface {
	// RecordInsert is called after each InsertSample with the batch size.
	RecordInsert(count int, duration time.Duration, err error)

	// RecordTransform is called after each batch transform with the batch size.
	RecordTransform(kind TransformKind, count int, duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(int, time.Duration, error)                  {}
func (NoopMetricsCollector) RecordTransform(TransformKind, int, time.Duration, error) {}

// BasicMetricsCollector keeps in-memory counters.
type BasicMetricsCollector struct {
	InsertCalls     atomic.Int64
	InsertErrors    atomic.Int64
	InsertedSamples atomic.Int64
	InsertNanos     atomic.Int64

	ForwardCalls  atomic.Int64
	ForwardErrors atomic.Int64
	ForwardValues atomic.Int64
	InverseCalls  atomic.Int64
	InverseErrors atomic.Int64
	InverseValues atomic.Int64
	TransformNanos atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(count int, duration time.Duration, err error) {
	b.InsertCalls.Add(1)
	b.InsertNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
		return
	}
	b.InsertedSamples.Add(int64(count))
}

// RecordTransform implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTransform(kind TransformKind, count int, duration time.Duration, err error) {
	b.TransformNanos.Add(duration.Nanoseconds())
	calls, errs, values := &b.ForwardCalls, &b.ForwardErrors, &b.ForwardValues
	if kind == Inverse {
		calls, errs, values = &b.InverseCalls, &b.InverseErrors, &b.InverseValues
	}
	calls.Add(1)
	if err != nil {
		errs.Add(1)
		return
	}
	values.Add(int64(count))
}
