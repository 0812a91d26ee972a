package mp3

import "math"

// granuleInfo is the side information of one granule of one channel.
type granuleInfo struct {
	part23Length int
	bigValues    int
	count1       int
	globalGain   int
	tableSelect  [3]int
	region0Count int
	region1Count int
	count1Table  int

	// region boundaries in spectral lines, clamped to bigValues*2
	address1, address2, address3 int
}

// quantizer owns the per granule scratch space of the rate loop.
type quantizer struct {
	sfb  *[23]int
	xr34 [granuleSize]float64
	ix   [granuleSize]int
}

// quantize fills q.ix for the global gain and returns the largest value.
func (q *quantizer) quantize(gg int) int {
	step := stepPow[gg]
	top := 0
	for i, v := range q.xr34 {
		n := int(v*step + (0.5 - quantOffset))
		q.ix[i] = n
		if n > top {
			top = n
		}
	}
	return top
}

// rateLoop picks the smallest global gain whose Huffman coding fits in
// budget bits and leaves the quantized spectrum in q.ix.
func (q *quantizer) rateLoop(xr *[granuleSize]float64, budget int) granuleInfo {
	if budget > part23Limit {
		budget = part23Limit
	}

	var peak float64
	for i, v := range xr {
		a := math.Sqrt(math.Sqrt(math.Abs(v)))
		a = a * a * a
		q.xr34[i] = a
		if a > peak {
			peak = a
		}
	}

	var gi granuleInfo
	if peak == 0 {
		q.ix = [granuleSize]int{}
		gi.globalGain = globalGainRef
		return gi
	}

	lo := 0
	for lo < 255 && peak*stepPow[lo]+(0.5-quantOffset) > maxBigValue {
		lo++
	}

	hi := 255
	for lo < hi {
		mid := (lo + hi) / 2
		q.quantize(mid)
		if q.countBits(&gi) <= budget {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	q.quantize(lo)
	gi.part23Length = q.countBits(&gi)
	gi.globalGain = lo
	return gi
}

// countBits splits q.ix into big-values, count1 and zero regions, picks
// code tables for each and returns the Huffman bit count.
func (q *quantizer) countBits(gi *granuleInfo) int {
	ix := &q.ix

	i := granuleSize
	for i > 1 && ix[i-1] == 0 && ix[i-2] == 0 {
		i -= 2
	}
	gi.count1 = 0
	for i > 3 && ix[i-1] <= 1 && ix[i-2] <= 1 && ix[i-3] <= 1 && ix[i-4] <= 1 {
		gi.count1++
		i -= 4
	}
	gi.bigValues = i / 2

	bits := q.count1Bits(gi, i)
	q.subdivide(gi)

	starts := [4]int{0, gi.address1, gi.address2, gi.address3}
	for r := 0; r < 3; r++ {
		t, n := chooseTable(ix[starts[r]:starts[r+1]])
		gi.tableSelect[r] = t
		bits += n
	}
	return bits
}

func (q *quantizer) count1Bits(gi *granuleInfo, start int) int {
	ix := &q.ix
	bitsA, bitsB, signs := 0, 0, 0
	for k := 0; k < gi.count1; k++ {
		p := start + k*4
		idx := ix[p]<<3 | ix[p+1]<<2 | ix[p+2]<<1 | ix[p+3]
		bitsA += int(count1LenA[idx])
		bitsB += int(count1LenB[idx])
		signs += ix[p] + ix[p+1] + ix[p+2] + ix[p+3]
	}
	if bitsA <= bitsB {
		gi.count1Table = 0
		return bitsA + signs
	}
	gi.count1Table = 1
	return bitsB + signs
}

func (q *quantizer) subdivide(gi *granuleInfo) {
	bv := gi.bigValues * 2
	gi.address3 = bv
	if bv == 0 {
		gi.region0Count, gi.region1Count = 0, 0
		gi.address1, gi.address2 = 0, 0
		return
	}
	sfb := q.sfb

	n := 0
	for sfb[n] < bv {
		n++
	}

	count := regionSplit[n][0]
	for count > 0 && sfb[count+1] > bv {
		count--
	}
	gi.region0Count = count
	gi.address1 = sfb[count+1]

	idx := count + 1
	count = regionSplit[n][1]
	for count > 0 && sfb[idx+count+1] > bv {
		count--
	}
	gi.region1Count = count
	gi.address2 = sfb[idx+count+1]

	gi.address1 = min(gi.address1, bv)
	gi.address2 = min(gi.address2, bv)
}

// chooseTable returns the cheapest code table for a run of pairs and the
// bits it costs, sign and linbits included.
func chooseTable(ix []int) (int, int) {
	top := 0
	for _, v := range ix {
		if v > top {
			top = v
		}
	}
	if top == 0 {
		return 0, 0
	}

	best, bestBits := 0, math.MaxInt
	try := func(t int) {
		if n := pairBits(t, ix); n < bestBits {
			best, bestBits = t, n
		}
	}

	if top <= 15 {
		for _, t := range candidates[top] {
			try(t)
		}
		return best, bestBits
	}

	for t := 16; t < 24; t++ {
		if top-15 < 1<<huffTables[t].linbits {
			try(t)
			break
		}
	}
	for t := 24; t < 32; t++ {
		if top-15 < 1<<huffTables[t].linbits {
			try(t)
			break
		}
	}
	return best, bestBits
}

func pairBits(t int, ix []int) int {
	h := &huffTables[t]
	bits := 0
	for i := 0; i+1 < len(ix); i += 2 {
		x, y := ix[i], ix[i+1]
		if h.linbits > 0 {
			if x >= 15 {
				bits += h.linbits
				x = 15
			}
			if y >= 15 {
				bits += h.linbits
				y = 15
			}
		}
		bits += int(h.lens[x*h.xlen+y])
		if ix[i] != 0 {
			bits++
		}
		if ix[i+1] != 0 {
			bits++
		}
	}
	return bits
}
