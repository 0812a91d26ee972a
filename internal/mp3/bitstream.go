package mp3

// bitWriter packs values MSB first.
type bitWriter struct {
	buf   []byte
	acc   uint64
	nbits uint
}

func (w *bitWriter) put(v uint32, n int) {
	if n == 0 {
		return
	}
	w.acc = w.acc<<uint(n) | uint64(v)&(1<<uint(n)-1)
	w.nbits += uint(n)
	for w.nbits >= 8 {
		w.nbits -= 8
		w.buf = append(w.buf, byte(w.acc>>w.nbits))
	}
}

// bytes returns everything written so far, zero padding the last byte.
func (w *bitWriter) bytes() []byte {
	if w.nbits > 0 {
		out := append([]byte(nil), w.buf...)
		return append(out, byte(w.acc<<(8-w.nbits)))
	}
	return w.buf
}

func (w *bitWriter) reset() {
	w.buf = w.buf[:0]
	w.acc = 0
	w.nbits = 0
}
