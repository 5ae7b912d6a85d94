package netio

import "sync"

// BufferPool hands out relay buffers, keeping one [sync.Pool] per buffer size.
//
// The zero value is ready for use. A nil *BufferPool allocates on every Get.
type BufferPool struct {
	pools sync.Map // map[int]*sync.Pool
}

// Get returns a buffer of exactly size bytes.
func (p *BufferPool) Get(size int) *[]byte {
	if p == nil {
		b := make([]byte, size)
		return &b
	}
	return p.pool(size).Get().(*[]byte)
}

// Put returns b to the pool for its size.
func (p *BufferPool) Put(b *[]byte) {
	if p == nil || b == nil {
		return
	}
	p.pool(len(*b)).Put(b)
}

func (p *BufferPool) pool(size int) *sync.Pool {
	if v, ok := p.pools.Load(size); ok {
		return v.(*sync.Pool)
	}
	v, _ := p.pools.LoadOrStore(size, &sync.Pool{
		New: func() any {
			b := make([]byte, size)
			return &b
		},
	})
	return v.(*sync.Pool)
}
