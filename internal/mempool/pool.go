// Package mempool recycles the float32 buffers that feed model inputs.
// Normalized image tensors are the largest short-lived allocations on the
// classifier and scene-text paths, so they are drawn from size-classed pools.
package mempool

import (
	"sync"
)

const classStep = 1024

var pools sync.Map // size class -> *sync.Pool

// sizeClass rounds n up to the next multiple of classStep.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

func poolFor(cls int) *sync.Pool {
	if p, ok := pools.Load(cls); ok {
		return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
	}
	p, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]float32, cls)
		return &buf
	}})
	return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetFloat32 returns a buffer of length n. Its contents are unspecified;
// callers overwrite every element.
func GetFloat32(n int) []float32 {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp, _ := poolFor(cls).Get().(*[]float32)
	if bp == nil || cap(*bp) < cls {
		buf := make([]float32, cls)
		return buf[:n]
	}
	return (*bp)[:n]
}

// PutFloat32 hands buf back for reuse. Buffers that were not obtained from
// GetFloat32 are accepted as long as their capacity fills a size class.
// A nil or tiny slice is ignored.
func PutFloat32(buf []float32) {
	if cap(buf) < classStep {
		return
	}
	cls := cap(buf) / classStep * classStep
	full := buf[:cls]
	poolFor(cls).Put(&full)
}
