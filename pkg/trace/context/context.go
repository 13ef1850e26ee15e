// Copyright 2025 Arcade Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package context

import (
	"context"
	"runtime"
	"sync"

	"github.com/timandy/routine"
	"go.opentelemetry.io/otel/trace"
)

const bucketsSize = 128
const armSystem = "arm64"

type (
	contextBucket struct {
		lock sync.RWMutex
		data map[uint64]context.Context
	}
	contextBuckets struct {
		buckets [bucketsSize]*contextBucket
	}
)

var goroutineContext contextBuckets

func init() {
	for i := range goroutineContext.buckets {
		goroutineContext.buckets[i] = &contextBucket{
			data: make(map[uint64]context.Context),
		}
	}
}

// GetContext returns the context registered for the calling goroutine, or
// nil if none was set.
func GetContext() context.Context {
	if runtime.GOARCH == armSystem {
		return context.Background()
	}
	goid := routine.Goid()
	bucket := goroutineContext.buckets[goid%bucketsSize]
	bucket.lock.RLock()
	ctx := bucket.data[goid]
	bucket.lock.RUnlock()
	return ctx
}

// SetContext registers ctx for the calling goroutine.
func SetContext(ctx context.Context) {
	if runtime.GOARCH == armSystem {
		return
	}
	goid := routine.Goid()
	bucket := goroutineContext.buckets[goid%bucketsSize]
	bucket.lock.Lock()
	defer bucket.lock.Unlock()
	bucket.data[goid] = ctx
}

// ClearContext removes the calling goroutine's registration.
func ClearContext() {
	if runtime.GOARCH == armSystem {
		return
	}
	goid := routine.Goid()
	bucket := goroutineContext.buckets[goid%bucketsSize]
	bucket.lock.Lock()
	defer bucket.lock.Unlock()
	delete(bucket.data, goid)
}

// RunWithContext registers ctx for the duration of fn and cleans up after.
func RunWithContext(ctx context.Context, fn func(ctx context.Context)) {
	SetContext(ctx)
	defer ClearContext()
	fn(ctx)
}

// ContextWithSpan ensures ctx carries a valid span, falling back to the
// calling goroutine's registered context when ctx itself has none.
func ContextWithSpan(ctx context.Context) context.Context {
	if span := trace.SpanFromContext(ctx); !span.SpanContext().IsValid() {
		pct := GetContext()
		if pct != nil {
			if span := trace.SpanFromContext(pct); span.SpanContext().IsValid() {
				ctx = trace.ContextWithSpan(ctx, span)
			}
		}
	}
	return ctx
}
