package mp3

// subbandGranule holds 18 consecutive outputs of the analysis filterbank.
type subbandGranule [18][subbandLimit]float64

// mdct turns the previous and current subband granules of one channel into
// 576 spectral lines, then applies the encoder side alias butterflies.
// cur is modified: odd samples of odd subbands are negated, which undoes
// the spectral inversion of those bands. It becomes prev for the next call.
func mdct(prev, cur *subbandGranule, xr *[granuleSize]float64) {
	for band := 1; band < subbandLimit; band += 2 {
		for t := 1; t < 18; t += 2 {
			cur[t][band] = -cur[t][band]
		}
	}

	var in [36]float64
	for band := 0; band < subbandLimit; band++ {
		for t := 0; t < 18; t++ {
			in[t] = prev[t][band]
			in[t+18] = cur[t][band]
		}
		out := xr[band*18 : band*18+18]
		for m := 0; m < 18; m++ {
			var sum float64
			row := &mdctTable[m]
			for k := 0; k < 36; k++ {
				sum += row[k] * in[k]
			}
			out[m] = sum
		}
	}

	for band := 1; band < subbandLimit; band++ {
		lo := band*18 - 1
		hi := band * 18
		for i := 0; i < 8; i++ {
			bu := xr[lo-i]
			bd := xr[hi+i]
			xr[lo-i] = bu*aliasCS[i] + bd*aliasCA[i]
			xr[hi+i] = bd*aliasCS[i] - bu*aliasCA[i]
		}
	}
}
