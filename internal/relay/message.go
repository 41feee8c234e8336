package relay

import (
	"errors"

	"rate-index-oracle/internal/rates"
)

// Wire layout, big-endian, 32 bytes total:
//
//	[0:12)  rate      (uint96)
//	[12:27) index     (uint120)
//	[27:32) timestamp (uint40)
//
// The widths hold multi-decade compounding at RAY scale: a uint96 rate
// tops out near 79 RAY, a uint120 index near 1.3e9 RAY, and a uint40
// timestamp is good until the year 36812.
const (
	MessageSize = 32

	rateWidth      = 12
	indexWidth     = 15
	timestampWidth = 5
)

var (
	// ErrMalformedMessage indicates a payload of the wrong width.
	ErrMalformedMessage = errors.New("relay: malformed message")
	// ErrFieldOverflow indicates an observation whose fields do not fit the
	// wire widths.
	ErrFieldOverflow = errors.New("relay: field exceeds wire width")
)

// Encode packs an observation into the fixed-width wire representation.
// Packing is deterministic and lossless for every value within the field
// widths; wider values fail rather than truncate.
func Encode(s rates.State) ([]byte, error) {
	if s.Rate.BitLen() > rateWidth*8 {
		return nil, ErrFieldOverflow
	}
	if s.Index.BitLen() > indexWidth*8 {
		return nil, ErrFieldOverflow
	}
	if s.Timestamp >= 1<<(timestampWidth*8) {
		return nil, ErrFieldOverflow
	}

	buf := make([]byte, MessageSize)
	rate := s.Rate.Bytes32()
	copy(buf[0:rateWidth], rate[32-rateWidth:])
	index := s.Index.Bytes32()
	copy(buf[rateWidth:rateWidth+indexWidth], index[32-indexWidth:])
	for i := 0; i < timestampWidth; i++ {
		buf[MessageSize-1-i] = byte(s.Timestamp >> (8 * i))
	}
	return buf, nil
}

// Decode unpacks a wire payload produced by Encode. Only structural
// validity is checked here; semantic validation is the receiving oracle's
// job.
func Decode(buf []byte) (rates.State, error) {
	if len(buf) != MessageSize {
		return rates.State{}, ErrMalformedMessage
	}

	var s rates.State
	s.Rate.SetBytes(buf[0:rateWidth])
	s.Index.SetBytes(buf[rateWidth : rateWidth+indexWidth])
	for _, b := range buf[rateWidth+indexWidth:] {
		s.Timestamp = s.Timestamp<<8 | uint64(b)
	}
	return s, nil
}
