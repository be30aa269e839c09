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

//go:build unix

package arena

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func allocNodes(n int) ([]Node, func() error, bool, error) {
	data, err := unix.Mmap(-1, 0, n*NodeBytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, false, err
	}
	// Tree descents jump across the pool.
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil && err != unix.EINVAL {
		_ = unix.Munmap(data)
		return nil, nil, false, err
	}
	nodes := unsafe.Slice((*Node)(unsafe.Pointer(unsafe.SliceData(data))), n)
	release := func() error {
		return unix.Munmap(data)
	}
	return nodes, release, true, nil
}
