package mp3

import "math"

const (
	granuleSize   = 576
	subbandLimit  = 32
	hanSize       = 512
	maxChannels   = 2
	maxGranules   = 2
	maxBigValue   = 15 + (1<<13 - 1)
	part23Limit   = 4095
	quantOffset   = 0.0946
	globalGainRef = 210
)

type mpegVersion int

const (
	mpeg25 mpegVersion = 0
	mpeg2  mpegVersion = 2
	mpeg1  mpegVersion = 3
)

// bitrates in kbps indexed by [version is MPEG-1][bitrate index].
var bitrateTable = [2][15]int{
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
}

type rateInfo struct {
	version mpegVersion
	index   int
	sfb     *[23]int
}

var sampleRates = map[int]rateInfo{
	44100: {mpeg1, 0, &sfbLong44100},
	48000: {mpeg1, 1, &sfbLong48000},
	32000: {mpeg1, 2, &sfbLong32000},
	22050: {mpeg2, 0, &sfbLong22050},
	24000: {mpeg2, 1, &sfbLong24000},
	16000: {mpeg2, 2, &sfbLong22050},
	11025: {mpeg25, 0, &sfbLong22050},
	12000: {mpeg25, 1, &sfbLong22050},
	8000:  {mpeg25, 2, &sfbLong8000},
}

// Long block scalefactor band boundaries.
var (
	sfbLong44100 = [23]int{0, 4, 8, 12, 16, 20, 24, 30, 36, 44, 52, 62, 74, 90, 110, 134, 162, 196, 238, 288, 342, 418, 576}
	sfbLong48000 = [23]int{0, 4, 8, 12, 16, 20, 24, 30, 36, 42, 50, 60, 72, 88, 106, 128, 156, 190, 230, 276, 330, 384, 576}
	sfbLong32000 = [23]int{0, 4, 8, 12, 16, 20, 24, 30, 36, 44, 54, 66, 82, 102, 126, 156, 194, 240, 296, 364, 448, 550, 576}
	sfbLong22050 = [23]int{0, 6, 12, 18, 24, 30, 36, 44, 54, 66, 80, 96, 116, 140, 168, 200, 238, 284, 336, 396, 464, 522, 576}
	sfbLong24000 = [23]int{0, 6, 12, 18, 24, 30, 36, 44, 54, 66, 80, 96, 114, 136, 162, 194, 232, 278, 332, 394, 464, 540, 576}
	sfbLong8000  = [23]int{0, 12, 24, 36, 48, 60, 72, 88, 108, 132, 160, 192, 232, 280, 336, 400, 476, 566, 568, 570, 572, 574, 576}
)

// regionSplit gives region0_count and region1_count for a big-values
// area ending inside scalefactor band n.
var regionSplit = [23][2]int{
	{0, 0}, {0, 0}, {0, 0}, {0, 0}, {0, 0}, {0, 1}, {1, 1}, {1, 1},
	{1, 2}, {2, 2}, {2, 3}, {2, 3}, {3, 4}, {3, 4}, {3, 4}, {4, 5},
	{4, 5}, {4, 6}, {5, 6}, {5, 6}, {5, 7}, {6, 7}, {6, 7},
}

// huffTable describes one big-values code table. Tables 16-23 share the
// codes of 16 and 24-31 share the codes of 24; they differ in linbits.
type huffTable struct {
	xlen    int
	linbits int
	codes   []uint16
	lens    []uint8
}

var huffTables = [32]huffTable{
	0:  {},
	1:  {2, 0, hcode1[:], hlen1[:]},
	2:  {3, 0, hcode2[:], hlen2[:]},
	3:  {3, 0, hcode3[:], hlen3[:]},
	5:  {4, 0, hcode5[:], hlen5[:]},
	6:  {4, 0, hcode6[:], hlen6[:]},
	7:  {6, 0, hcode7[:], hlen7[:]},
	8:  {6, 0, hcode8[:], hlen8[:]},
	9:  {6, 0, hcode9[:], hlen9[:]},
	10: {8, 0, hcode10[:], hlen10[:]},
	11: {8, 0, hcode11[:], hlen11[:]},
	12: {8, 0, hcode12[:], hlen12[:]},
	13: {16, 0, hcode13[:], hlen13[:]},
	15: {16, 0, hcode15[:], hlen15[:]},
	16: {16, 1, hcode16[:], hlen16[:]},
	17: {16, 2, hcode16[:], hlen16[:]},
	18: {16, 3, hcode16[:], hlen16[:]},
	19: {16, 4, hcode16[:], hlen16[:]},
	20: {16, 6, hcode16[:], hlen16[:]},
	21: {16, 8, hcode16[:], hlen16[:]},
	22: {16, 10, hcode16[:], hlen16[:]},
	23: {16, 13, hcode16[:], hlen16[:]},
	24: {16, 4, hcode24[:], hlen24[:]},
	25: {16, 5, hcode24[:], hlen24[:]},
	26: {16, 6, hcode24[:], hlen24[:]},
	27: {16, 7, hcode24[:], hlen24[:]},
	28: {16, 8, hcode24[:], hlen24[:]},
	29: {16, 9, hcode24[:], hlen24[:]},
	30: {16, 11, hcode24[:], hlen24[:]},
	31: {16, 13, hcode24[:], hlen24[:]},
}

// candidates lists the tables worth trying for a region whose largest
// magnitude is at most 15, indexed by that magnitude.
var candidates = [16][]int{
	0:  {0},
	1:  {1},
	2:  {2, 3},
	3:  {5, 6},
	4:  {7, 8, 9},
	5:  {7, 8, 9},
	6:  {10, 11, 12},
	7:  {10, 11, 12},
	8:  {13, 15},
	9:  {13, 15},
	10: {13, 15},
	11: {13, 15},
	12: {13, 15},
	13: {13, 15},
	14: {13, 15},
	15: {13, 15},
}

var aliasCoef = [8]float64{-0.6, -0.535, -0.33, -0.185, -0.095, -0.041, -0.0142, -0.0037}

var (
	aliasCS [8]float64
	aliasCA [8]float64

	// analysis window, matrixing and MDCT kernels
	window    [hanSize]float64
	matrix    [subbandLimit][64]float64
	mdctTable [18][36]float64

	// stepPow[gg] is 2^(-(gg-210)*3/16), the quantizer scale for a global gain.
	stepPow [256]float64
)

func init() {
	for i, c := range aliasCoef {
		sq := math.Sqrt(1 + c*c)
		aliasCS[i] = 1 / sq
		aliasCA[i] = c / sq
	}

	initWindow()

	for k := 0; k < subbandLimit; k++ {
		for i := 0; i < 64; i++ {
			matrix[k][i] = math.Cos(float64((2*k+1)*(i-16)) * math.Pi / 64)
		}
	}

	for m := 0; m < 18; m++ {
		for k := 0; k < 36; k++ {
			mdctTable[m][k] = math.Sin(math.Pi/36*(float64(k)+0.5)) *
				math.Cos(math.Pi/72*float64((2*k+19)*(2*m+1))) / 9
		}
	}

	for gg := range stepPow {
		stepPow[gg] = math.Pow(2, -float64(gg-globalGainRef)*3/16)
	}
}

// initWindow builds the 512 tap analysis window from a Kaiser windowed
// sinc prototype with cutoff 1.14*pi/64, the shape of the ISO table.
func initWindow() {
	const (
		beta   = 10.0
		cutoff = 1.14 * math.Pi / 64
	)
	norm := besselI0(beta)
	for n := 1; n < hanSize; n++ {
		m := float64(n - hanSize/2)
		var h float64
		if m == 0 {
			h = 2 * cutoff / math.Pi
		} else {
			h = 2 * math.Sin(cutoff*m) / (math.Pi * m)
		}
		r := m / (hanSize / 2)
		h *= besselI0(beta*math.Sqrt(math.Max(0, 1-r*r))) / norm
		if (n/64)%2 == 1 {
			h = -h
		}
		window[n] = h
	}
}

func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	for k := 1.0; term > 1e-12*sum; k++ {
		term *= (x / (2 * k)) * (x / (2 * k))
		sum += term
	}
	return sum
}
