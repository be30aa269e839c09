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
	"fmt"

	"github.com/cdftree/cdftree-go/common"
)

// Error kinds, matched with errors.Is.
var (
	ErrOutOfMemory      = common.ErrOutOfMemory
	ErrInvalidLifecycle = common.ErrInvalidLifecycle
	ErrUnknownKey       = common.ErrUnknownKey
	ErrCapacityExceeded = common.ErrCapacityExceeded
	ErrInvalidInput     = common.ErrInvalidInput
)

var (
	// ErrNotInitialized is returned for calls made before InitMemory or after FreeMemory.
	ErrNotInitialized = fmt.Errorf("memory is not initialized: %w", ErrInvalidLifecycle)
	// ErrAlreadyInitialized is returned by a second InitMemory without FreeMemory.
	ErrAlreadyInitialized = fmt.Errorf("memory is already initialized: %w", ErrInvalidLifecycle)
	// ErrAlreadyFreed is returned by FreeMemory without a matching InitMemory.
	ErrAlreadyFreed = fmt.Errorf("memory is already freed: %w", ErrInvalidLifecycle)
)
