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

package common

import "errors"

// The error kinds every package of this module reports. Packages wrap them
// with their own sentinels and context, so callers match with errors.Is.
var (
	// ErrOutOfMemory is returned when the node pool cannot be reserved.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrInvalidLifecycle is returned for calls made outside an
	// init/teardown window, or for unpaired init and teardown calls.
	ErrInvalidLifecycle = errors.New("invalid lifecycle")
	// ErrUnknownKey is returned when a stream key has never received a sample.
	ErrUnknownKey = errors.New("unknown stream key")
	// ErrCapacityExceeded is returned when an insert would overflow a fixed budget.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrInvalidInput is returned for malformed input values or buffers.
	ErrInvalidInput = errors.New("invalid input")
)
