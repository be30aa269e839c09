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
	"runtime"

	"github.com/cdftree/cdftree-go/ostree"
	"github.com/cdftree/cdftree-go/stream"
)

const (
	// DefaultCapacity is the number of samples a single key may hold.
	DefaultCapacity = 1 << 20
	// DefaultPoolNodes is the number of distinct values the pool holds across all keys.
	DefaultPoolNodes = 1 << 22
	// DefaultParallelThreshold is the batch size from which transforms fan out.
	DefaultParallelThreshold = 1 << 14
)

type options struct {
	capacity          uint64
	poolNodes         int
	shards            int
	workers           int
	parallelThreshold int
	seed              uint64
	logger            *Logger
	metrics           MetricsCollector
}

func defaultOptions() options {
	return options{
		capacity:          DefaultCapacity,
		poolNodes:         DefaultPoolNodes,
		shards:            stream.DefaultShards,
		workers:           runtime.GOMAXPROCS(0),
		parallelThreshold: DefaultParallelThreshold,
		seed:              ostree.DefaultSeed,
		logger:            NoopLogger(),
		metrics:           NoopMetricsCollector{},
	}
}

// Option configures an Engine.
type Option func(*options)

// WithCapacity sets the number of samples each key may hold.
func WithCapacity(capacity uint64) Option {
	return func(o *options) {
		o.capacity = capacity
	}
}

// WithPoolNodes sets the size of the node pool reserved by InitMemory.
// Every distinct value of every key occupies one node.
func WithPoolNodes(n int) Option {
	return func(o *options) {
		o.poolNodes = n
	}
}

// WithShards sets the number of shards of the stream table.
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

// WithWorkers sets how many goroutines a large transform is split across.
// Values below 2 keep transforms sequential.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithParallelThreshold sets the smallest batch that is split across workers.
func WithParallelThreshold(n int) Option {
	return func(o *options) {
		o.parallelThreshold = n
	}
}

// WithSeed sets the base seed of the tree priority hash.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector sets the metrics collector. If nil is passed,
// metrics are discarded.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}
