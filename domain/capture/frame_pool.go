package capture

import "sync"

// Reusable scratch buffers for the capture-buffer-copy stage. The source's
// buffer is only valid during the sink call, so the producer copies it into a
// pooled buffer, encodes from there into a freshly allocated payload and hands
// the scratch back. Published frames never alias pooled memory.

var bufferPool sync.Pool // stores *[]byte

// acquireBuffer returns a scratch slice of exactly n bytes.
func acquireBuffer(n int) *[]byte {
	if v := bufferPool.Get(); v != nil {
		buf := v.(*[]byte)
		if cap(*buf) >= n {
			*buf = (*buf)[:n]
			return buf
		}
	}
	buf := make([]byte, n)
	return &buf
}

// recycleBuffer returns buf to the pool. The caller must not touch it afterwards.
func recycleBuffer(buf *[]byte) {
	if buf == nil || *buf == nil {
		return
	}
	bufferPool.Put(buf)
}
