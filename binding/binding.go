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

package binding

import (
	"fmt"
	"math"

	"github.com/cdftree/cdftree-go/cdftree"
	"github.com/cdftree/cdftree-go/common"
	"github.com/cdftree/cdftree-go/stream"
)

type callOptions struct {
	inPlace bool
}

// CallOption configures a transform call.
type CallOption func(*callOptions)

// InPlace selects whether the transform overwrites its input array.
func InPlace(inPlace bool) CallOption {
	return func(o *callOptions) {
		o.inPlace = inPlace
	}
}

// InitMemory opens the engine's memory window.
func InitMemory(e *cdftree.Engine) error {
	return e.InitMemory()
}

// FreeMemory closes the engine's memory window.
func FreeMemory(e *cdftree.Engine) error {
	return e.FreeMemory()
}

// InsertSample inserts a one-dimensional float32 array under key.
func InsertSample(e *cdftree.Engine, key int, a *Array) error {
	k, err := streamKey(key)
	if err != nil {
		return err
	}
	values, err := a.samples()
	if err != nil {
		return err
	}
	return e.InsertSample(k, values)
}

// SampleToCDF maps every element of a to its CDF value under key. By default
// a new array is returned and a is left untouched.
func SampleToCDF(e *cdftree.Engine, key int, a *Array, opts ...CallOption) (*Array, error) {
	return transform(key, a, false, opts, e.ValuesToFractions)
}

// SearchElementByCDF maps every CDF value in a to the matching sample under
// key. By default the results overwrite a and a itself is returned.
func SearchElementByCDF(e *cdftree.Engine, key int, a *Array, opts ...CallOption) (*Array, error) {
	return transform(key, a, true, opts, e.FractionsToValues)
}

type transformFn func(key stream.Key, values []float32, inPlace bool) ([]float32, error)

func transform(key int, a *Array, inPlace bool, opts []CallOption, fn transformFn) (*Array, error) {
	o := callOptions{inPlace: inPlace}
	for _, opt := range opts {
		opt(&o)
	}
	k, err := streamKey(key)
	if err != nil {
		return nil, err
	}
	values, err := a.samples()
	if err != nil {
		return nil, err
	}
	out, err := fn(k, values, o.inPlace)
	if err != nil {
		return nil, err
	}
	if o.inPlace {
		return a, nil
	}
	return NewArray(out)
}

func streamKey(key int) (stream.Key, error) {
	if key < 0 || uint64(key) > math.MaxUint32 {
		return 0, fmt.Errorf("index must be between 0 and %d, got %d: %w", uint64(math.MaxUint32), key, common.ErrInvalidInput)
	}
	return stream.Key(key), nil
}
