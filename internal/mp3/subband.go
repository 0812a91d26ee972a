package mp3

// filterbank is the polyphase analysis stage for one channel. x is a ring
// of the last 512 input samples; off marks where the newest 32 land.
type filterbank struct {
	x   [hanSize]float64
	off int
}

// analyze shifts 32 samples into the ring, read from in with the given
// stride, and writes one output sample for each of the 32 subbands.
func (f *filterbank) analyze(in []int16, stride int, s *[subbandLimit]float64) {
	pos := 0
	for i := 31; i >= 0; i-- {
		var v float64
		if pos < len(in) {
			v = float64(in[pos]) / 32768
		}
		f.x[(i+f.off)&(hanSize-1)] = v
		pos += stride
	}

	var y [64]float64
	for i := 0; i < 64; i++ {
		var sum float64
		for j := 0; j < 8; j++ {
			k := i + j<<6
			sum += f.x[(f.off+k)&(hanSize-1)] * window[k]
		}
		y[i] = sum
	}
	f.off = (f.off + hanSize - 32) & (hanSize - 1)

	for k := 0; k < subbandLimit; k++ {
		var sum float64
		row := &matrix[k]
		for i := 0; i < 64; i++ {
			sum += row[i] * y[i]
		}
		s[k] = sum
	}
}
