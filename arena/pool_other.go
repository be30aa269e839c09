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

//go:build !unix

package arena

import (
	"errors"
)

// maxHeapPoolBytes bounds heap-backed pools; the runtime aborts instead of
// returning an error when a huge make cannot be satisfied.
const maxHeapPoolBytes = 1 << 34

func allocNodes(n int) ([]Node, func() error, bool, error) {
	if n > maxHeapPoolBytes/NodeBytes {
		return nil, nil, false, errors.New("pool larger than the heap-backed limit")
	}
	return make([]Node, n), nil, false, nil
}
