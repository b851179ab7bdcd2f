// Package mempool recycles the float32 buffers that back model input and
// output tensors. A 640x640 detector input alone is 1.2M floats per image.
package mempool

import "sync"

const step = 1024

var float32Pools sync.Map // size class -> *sync.Pool

// sizeClass rounds n up to a multiple of step, with step as the floor.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func pool(cls int) *sync.Pool {
	if p, ok := float32Pools.Load(cls); ok {
		return p.(*sync.Pool)
	}
	p, _ := float32Pools.LoadOrStore(cls, &sync.Pool{
		New: func() any { return make([]float32, cls) },
	})
	return p.(*sync.Pool)
}

// GetFloat32 returns a buffer of length n. Contents are not zeroed; callers
// overwrite every element.
func GetFloat32(n int) []float32 {
	if n <= 0 {
		return nil
	}
	cls := sizeClass(n)
	buf, ok := pool(cls).Get().([]float32)
	if !ok || cap(buf) < cls {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 returns buf to its pool. Nil and foreign-sized slices are
// ignored so a buffer that did not come from GetFloat32 is never reused at
// the wrong class.
func PutFloat32(buf []float32) {
	c := cap(buf)
	if c == 0 || c != sizeClass(c) {
		return
	}
	pool(c).Put(buf[:c]) //nolint:staticcheck // slice header allocation is acceptable
}
