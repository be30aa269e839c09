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

// Package binding exposes the engine through the call surface of the original
// numeric extension: shaped typed arrays in, shaped typed arrays out, and the
// same in-place defaults (forward transforms copy, inverse transforms
// overwrite their input).
package binding

import (
	"fmt"
	"reflect"
	"slices"

	"golang.org/x/exp/constraints"

	"github.com/cdftree/cdftree-go/common"
)

// DType is the element type of an Array.
type DType int

const (
	Float32 DType = iota
	Float64
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Int
	Uint
	Uintptr
)

var dtypeNames = [...]string{
	Float32: "float32",
	Float64: "float64",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Int:     "int",
	Uint:    "uint",
	Uintptr: "uintptr",
}

func (d DType) String() string {
	if d < 0 || int(d) >= len(dtypeNames) {
		return fmt.Sprintf("DType(%d)", int(d))
	}
	return dtypeNames[d]
}

var kindToDType = map[reflect.Kind]DType{
	reflect.Float32: Float32,
	reflect.Float64: Float64,
	reflect.Int8:    Int8,
	reflect.Int16:   Int16,
	reflect.Int32:   Int32,
	reflect.Int64:   Int64,
	reflect.Uint8:   Uint8,
	reflect.Uint16:  Uint16,
	reflect.Uint32:  Uint32,
	reflect.Uint64:  Uint64,
	reflect.Int:     Int,
	reflect.Uint:    Uint,
	reflect.Uintptr: Uintptr,
}

// Numeric is the set of element types an Array can hold.
type Numeric interface {
	constraints.Integer | constraints.Float
}

// Array is a typed n-dimensional array over a flat, row-major slice. The
// slice is shared, not copied: writes through an in-place call are visible
// to the caller that built the Array.
type Array struct {
	dtype DType
	shape []int
	data  any
}

// NewArray wraps data in an Array. Without a shape the array is
// one-dimensional.
func NewArray[T Numeric](data []T, shape ...int) (*Array, error) {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	size := 1
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("negative dimension in shape %v: %w", shape, common.ErrInvalidInput)
		}
		size *= dim
	}
	if size != len(data) {
		return nil, fmt.Errorf("shape %v does not hold %d elements: %w", shape, len(data), common.ErrInvalidInput)
	}
	return &Array{
		dtype: kindToDType[reflect.TypeFor[T]().Kind()],
		shape: slices.Clone(shape),
		data:  data,
	}, nil
}

// DType returns the element type.
func (a *Array) DType() DType {
	return a.dtype
}

// Shape returns a copy of the dimensions.
func (a *Array) Shape() []int {
	return slices.Clone(a.shape)
}

// NDim returns the number of dimensions.
func (a *Array) NDim() int {
	return len(a.shape)
}

// Size returns the number of elements.
func (a *Array) Size() int {
	return reflect.ValueOf(a.data).Len()
}

// Data returns the underlying slice.
func (a *Array) Data() any {
	return a.data
}

// Float32s returns the underlying slice of a float32 array.
func (a *Array) Float32s() ([]float32, bool) {
	f, ok := a.data.([]float32)
	return f, ok && a.dtype == Float32
}

// samples checks that a is a one-dimensional float32 array and returns its data.
func (a *Array) samples() ([]float32, error) {
	if a == nil {
		return nil, fmt.Errorf("nil array: %w", common.ErrInvalidInput)
	}
	if a.dtype != Float32 {
		return nil, fmt.Errorf("array must be float32, got %s: %w", a.dtype, common.ErrInvalidInput)
	}
	if len(a.shape) != 1 {
		return nil, fmt.Errorf("array must be one-dimensional, got shape %v: %w", a.shape, common.ErrInvalidInput)
	}
	f, _ := a.Float32s()
	return f, nil
}
