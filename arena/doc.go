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

// Package arena provides the fixed-size node pool that backs every
// order-statistics tree of an engine.
//
// The pool is reserved once, up front, and released once. Nodes are addressed
// by Ref, a 32-bit index into the pool, never by pointer, so trees hold no Go
// pointers into the pool and the whole pool can be unmapped in one call.
// Ref 0 is reserved as the nil reference.
//
// On unix systems the pool lives off-heap in an anonymous private mapping, so
// a large pool costs no GC scanning and a refused reservation surfaces as
// ErrOutOfMemory instead of a fatal runtime error.
package arena
