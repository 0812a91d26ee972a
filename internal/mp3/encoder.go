// Package mp3 is an MPEG-1/2/2.5 Layer III encoder. It codes long blocks
// only, without a psychoacoustic model, and keeps stereo channels
// independent. Rate control runs on the global gain alone; the bit
// reservoir lets quiet frames lend unused bytes to the next frame.
package mp3

import (
	"errors"
	"fmt"
)

// delay is the number of samples between input and decoded output:
// 481 for the analysis and synthesis filterbanks plus one granule of MDCT overlap.
const delay = 481 + granuleSize

var (
	ErrSampleRate = errors.New("mp3: unsupported sample rate")
	ErrChannels   = errors.New("mp3: unsupported channel count")
	ErrBitrate    = errors.New("mp3: unsupported bitrate")
)

type channelState struct {
	fb   filterbank
	prev subbandGranule
	cur  subbandGranule
	xr   [maxGranules][granuleSize]float64
}

// pendingFrame is an encoded frame whose trailing main data bytes may
// still be claimed by the next frame through main_data_begin.
type pendingFrame struct {
	buf  []byte
	free int // unused main data bytes at the end of buf
}

type Encoder struct {
	sampleRate int
	channels   int
	bitrate    int

	info         rateInfo
	granules     int
	frameSamples int
	sideBytes    int
	maxBegin     int
	bitrateIndex int

	frameBytes int // without padding
	fracRem    int
	fracAcc    int

	pending   []int16
	ch        [maxChannels]channelState
	quant     quantizer
	gi        [maxGranules][maxChannels]granuleInfo
	ix        [maxGranules][maxChannels][granuleSize]int
	main      bitWriter
	held      *pendingFrame
	samplesIn int64
	frames    int64
}

// NewEncoder returns an encoder for interleaved 16-bit PCM at the given
// sample rate, channel count (1 or 2) and bitrate in kbps.
func NewEncoder(sampleRate, channels, bitrate int) (*Encoder, error) {
	info, ok := sampleRates[sampleRate]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrSampleRate, sampleRate)
	}
	if channels < 1 || channels > maxChannels {
		return nil, fmt.Errorf("%w: %d", ErrChannels, channels)
	}

	e := &Encoder{
		sampleRate: sampleRate,
		channels:   channels,
		bitrate:    bitrate,
		info:       info,
	}

	table := bitrateTable[0]
	if info.version == mpeg1 {
		table = bitrateTable[1]
	}
	for i, br := range table {
		if i > 0 && br == bitrate {
			e.bitrateIndex = i
		}
	}
	if e.bitrateIndex == 0 {
		return nil, fmt.Errorf("%w: %d kbps", ErrBitrate, bitrate)
	}

	if info.version == mpeg1 {
		e.granules = 2
		e.maxBegin = 511
		e.sideBytes = 17
		if channels == 2 {
			e.sideBytes = 32
		}
	} else {
		e.granules = 1
		e.maxBegin = 255
		e.sideBytes = 9
		if channels == 2 {
			e.sideBytes = 17
		}
	}
	e.frameSamples = e.granules * granuleSize

	num := e.frameSamples / 8 * bitrate * 1000
	e.frameBytes = num / sampleRate
	e.fracRem = num % sampleRate
	e.quant.sfb = info.sfb
	return e, nil
}

// FrameSamples is the number of samples per channel in one MP3 frame.
func (e *Encoder) FrameSamples() int { return e.frameSamples }

// EncodeBuffer accepts interleaved samples and returns the bytes of every
// frame that is complete. The newest frame is held until the next call
// or Flush.
func (e *Encoder) EncodeBuffer(pcm []int16) []byte {
	e.pending = append(e.pending, pcm...)
	e.samplesIn += int64(len(pcm) / e.channels)

	step := e.frameSamples * e.channels
	var out []byte
	for len(e.pending) >= step {
		out = append(out, e.encodeFrame(e.pending[:step])...)
		e.pending = e.pending[step:]
	}
	return out
}

// Flush encodes the buffered tail padded with silence, keeps encoding
// silent frames until the filterbank delay has drained, and releases the
// held frame. The encoder starts a fresh stream afterwards.
func (e *Encoder) Flush() []byte {
	if e.samplesIn == 0 {
		e.reset()
		return nil
	}

	step := e.frameSamples * e.channels
	var out []byte
	for e.frames*int64(e.frameSamples) < e.samplesIn+delay {
		block := make([]int16, step)
		copy(block, e.pending)
		if len(e.pending) > step {
			e.pending = e.pending[step:]
		} else {
			e.pending = nil
		}
		out = append(out, e.encodeFrame(block)...)
	}
	if e.held != nil {
		out = append(out, e.held.buf...)
	}
	e.reset()
	return out
}

func (e *Encoder) reset() {
	e.pending = nil
	e.held = nil
	e.samplesIn = 0
	e.frames = 0
	e.fracAcc = 0
	for i := range e.ch {
		e.ch[i] = channelState{}
	}
}

// encodeFrame codes one frame of interleaved samples and returns the bytes
// of the previously held frame, which can no longer change.
func (e *Encoder) encodeFrame(block []int16) []byte {
	padding := 0
	e.fracAcc += e.fracRem
	if e.fracAcc >= e.sampleRate {
		e.fracAcc -= e.sampleRate
		padding = 1
	}
	size := e.frameBytes + padding
	slot := size - 4 - e.sideBytes

	begin := 0
	if e.held != nil {
		begin = min(e.maxBegin, e.held.free)
	}

	for gr := 0; gr < e.granules; gr++ {
		for c := 0; c < e.channels; c++ {
			st := &e.ch[c]
			var s [subbandLimit]float64
			for t := 0; t < 18; t++ {
				off := (gr*granuleSize + t*32) * e.channels
				st.fb.analyze(block[off+c:], e.channels, &s)
				st.cur[t] = s
			}
			mdct(&st.prev, &st.cur, &st.xr[gr])
			st.prev = st.cur
		}
	}

	// Every granule/channel gets an even share of what is left, so bits a
	// quiet granule does not spend flow to the next one and, past the end
	// of the frame, into the reservoir.
	available := (begin + slot) * 8
	units := e.granules * e.channels
	used := 0
	for gr := 0; gr < e.granules; gr++ {
		for c := 0; c < e.channels; c++ {
			budget := (available - used) / units
			units--
			gi := e.quant.rateLoop(&e.ch[c].xr[gr], budget)
			e.gi[gr][c] = gi
			e.ix[gr][c] = e.quant.ix
			for i, v := range e.ch[c].xr[gr] {
				if v < 0 {
					e.ix[gr][c][i] = -e.ix[gr][c][i]
				}
			}
			used += gi.part23Length
		}
	}

	e.main.reset()
	for gr := 0; gr < e.granules; gr++ {
		for c := 0; c < e.channels; c++ {
			writeGranule(&e.main, &e.gi[gr][c], &e.ix[gr][c])
		}
	}
	data := e.main.bytes()

	buf := make([]byte, size)
	var hdr bitWriter
	e.writeHeader(&hdr, padding)
	e.writeSideInfo(&hdr, begin)
	copy(buf, hdr.bytes())

	var prev []byte
	if e.held != nil {
		n := min(begin, len(data))
		tail := e.held.buf[len(e.held.buf)-begin:]
		copy(tail, data[:n])
		data = data[n:]
		prev = e.held.buf
	}
	copy(buf[4+e.sideBytes:], data)

	e.held = &pendingFrame{
		buf:  buf,
		free: slot - len(data),
	}
	e.frames++
	return prev
}

func (e *Encoder) writeHeader(w *bitWriter, padding int) {
	mode := uint32(0) // stereo
	if e.channels == 1 {
		mode = 3
	}
	w.put(0x7ff, 11)
	w.put(uint32(e.info.version), 2)
	w.put(1, 2) // layer III
	w.put(1, 1) // no CRC
	w.put(uint32(e.bitrateIndex), 4)
	w.put(uint32(e.info.index), 2)
	w.put(uint32(padding), 1)
	w.put(0, 1) // private
	w.put(mode, 2)
	w.put(0, 2) // mode extension
	w.put(0, 1) // copyright
	w.put(1, 1) // original
	w.put(0, 2) // emphasis
}

func (e *Encoder) writeSideInfo(w *bitWriter, begin int) {
	if e.info.version == mpeg1 {
		w.put(uint32(begin), 9)
		if e.channels == 1 {
			w.put(0, 5)
		} else {
			w.put(0, 3)
		}
		w.put(0, 4*e.channels) // scfsi
	} else {
		w.put(uint32(begin), 8)
		w.put(0, e.channels)
	}

	for gr := 0; gr < e.granules; gr++ {
		for c := 0; c < e.channels; c++ {
			gi := &e.gi[gr][c]
			w.put(uint32(gi.part23Length), 12)
			w.put(uint32(gi.bigValues), 9)
			w.put(uint32(gi.globalGain), 8)
			if e.info.version == mpeg1 {
				w.put(0, 4) // scalefac_compress
			} else {
				w.put(0, 9)
			}
			w.put(0, 1) // window_switching_flag
			for _, t := range gi.tableSelect {
				w.put(uint32(t), 5)
			}
			w.put(uint32(gi.region0Count), 4)
			w.put(uint32(gi.region1Count), 3)
			if e.info.version == mpeg1 {
				w.put(0, 1) // preflag
			}
			w.put(0, 1) // scalefac_scale
			w.put(uint32(gi.count1Table), 1)
		}
	}
}

// writeGranule emits the Huffman coded spectrum; ix carries signs.
func writeGranule(w *bitWriter, gi *granuleInfo, ix *[granuleSize]int) {
	starts := [4]int{0, gi.address1, gi.address2, gi.address3}
	for r := 0; r < 3; r++ {
		t := gi.tableSelect[r]
		if t == 0 {
			continue
		}
		h := &huffTables[t]
		for i := starts[r]; i < starts[r+1]; i += 2 {
			writePair(w, h, ix[i], ix[i+1])
		}
	}

	i := gi.address3
	for k := 0; k < gi.count1; k++ {
		v := ix[i : i+4]
		idx := abs(v[0])<<3 | abs(v[1])<<2 | abs(v[2])<<1 | abs(v[3])
		if gi.count1Table == 0 {
			w.put(uint32(count1CodeA[idx]), int(count1LenA[idx]))
		} else {
			w.put(uint32(count1CodeB[idx]), int(count1LenB[idx]))
		}
		for _, s := range v {
			if s != 0 {
				w.put(sign(s), 1)
			}
		}
		i += 4
	}
}

func writePair(w *bitWriter, h *huffTable, sx, sy int) {
	x, y := abs(sx), abs(sy)
	cx, cy := x, y
	if h.linbits > 0 {
		cx, cy = min(x, 15), min(y, 15)
	}
	idx := cx*h.xlen + cy
	w.put(uint32(h.codes[idx]), int(h.lens[idx]))
	if h.linbits > 0 && cx == 15 {
		w.put(uint32(x-15), h.linbits)
	}
	if x != 0 {
		w.put(sign(sx), 1)
	}
	if h.linbits > 0 && cy == 15 {
		w.put(uint32(y-15), h.linbits)
	}
	if y != 0 {
		w.put(sign(sy), 1)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) uint32 {
	if v < 0 {
		return 1
	}
	return 0
}
