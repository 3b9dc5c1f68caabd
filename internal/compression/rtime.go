package compression

import "github.com/deploymenttheory/go-jffs2/internal/types"

// rtimeState is the decoder state of the rtime scheme. The stream is a
// sequence of (literal, repeat) byte pairs. positions remembers, for every
// byte value, the output position just after that value was last written;
// a nonzero repeat copies that many bytes starting there. Copies may
// overlap the bytes they produce, so they are replayed one byte at a time.
type rtimeState struct {
	positions [256]int
	out       []byte
	outpos    int
	in        []byte
	inpos     int
}

// DecompressRtime decodes an rtime payload into exactly destLen bytes.
func DecompressRtime(src []byte, destLen int) ([]byte, error) {
	s := &rtimeState{out: make([]byte, destLen), in: src}
	for s.outpos < destLen {
		if err := s.step(); err != nil {
			return nil, err
		}
	}
	return s.out, nil
}

func (s *rtimeState) step() error {
	if s.inpos+2 > len(s.in) {
		return corrupt(types.CompressionRtime, "input exhausted at %d after %d of %d bytes", s.inpos, s.outpos, len(s.out))
	}
	value := s.in[s.inpos]
	repeat := int(s.in[s.inpos+1])
	s.inpos += 2

	s.out[s.outpos] = value
	s.outpos++

	backoffs := s.positions[value]
	s.positions[value] = s.outpos

	if s.outpos+repeat > len(s.out) {
		return corrupt(types.CompressionRtime, "repeat of %d at %d overruns %d byte output", repeat, s.outpos, len(s.out))
	}
	for ; repeat > 0; repeat-- {
		s.out[s.outpos] = s.out[backoffs]
		s.outpos++
		backoffs++
	}
	return nil
}

// CompressRtime encodes data with the rtime scheme. The output is at most
// twice the input length.
func CompressRtime(data []byte) []byte {
	var positions [256]int
	out := make([]byte, 0, len(data)/2+2)

	pos := 0
	for pos < len(data) {
		value := data[pos]
		out = append(out, value)
		pos++

		backpos := positions[value]
		positions[value] = pos

		runlen := 0
		for backpos < pos && pos < len(data) && data[pos] == data[backpos] && runlen < 255 {
			pos++
			backpos++
			runlen++
		}
		out = append(out, byte(runlen))
	}
	return out
}
