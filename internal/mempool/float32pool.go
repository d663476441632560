// Package mempool pools []float32 tensor buffers for the recognition hot
// path, where every line strip allocates a fresh CHW tensor otherwise.
package mempool

import "sync"

var pools sync.Map // size class (int) -> *sync.Pool

// sizeClass rounds n up to a 1 KiB multiple so that buffers of similar
// strip widths share a pool.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

// Get returns a []float32 of length n, zeroing is not guaranteed.
// Return it with Put when the tensor is no longer referenced.
func Get(n int) []float32 {
	cls := sizeClass(n)
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]float32, cls)
		return &buf
	}})
	p := pAny.(*sync.Pool)
	buf := *(p.Get().(*[]float32))
	if cap(buf) < n {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// Put returns a buffer obtained from Get. Slices that were not obtained
// from Get are accepted too, as long as they are not used afterwards.
func Put(buf []float32) {
	if cap(buf) == 0 {
		return
	}
	full := buf[:cap(buf)]
	p, ok := pools.Load(sizeClass(cap(full)))
	if !ok {
		return
	}
	p.(*sync.Pool).Put(&full)
}
