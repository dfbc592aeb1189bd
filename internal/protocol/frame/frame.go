package frame

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	HeaderLen   = 4
	SequenceLen = 4
	// MaxFrameLen is the largest total frame size the 16-bit length field can carry.
	MaxFrameLen = 0xFFFF
	// MaxBodyLen is the largest XML body that fits next to the header and sequence digits.
	MaxBodyLen = MaxFrameLen - HeaderLen - SequenceLen
	// InvalidSequence replaces an inbound sequence prefix that is not a number.
	InvalidSequence = 9999
)

var (
	ErrShortHeader    = errors.New("frame: short header")
	ErrInvalidLength  = errors.New("frame: length smaller than header")
	ErrFrameTooLarge  = errors.New("frame: frame too large")
	ErrTruncatedFrame = errors.New("frame: truncated frame")
	// ErrShortPayload reports a complete frame too short to hold the
	// sequence digits. The stream stays aligned, so readers may skip it.
	ErrShortPayload = errors.New("frame: payload shorter than sequence")
)

// Frame is one decoded wire message.
type Frame struct {
	Sequence string
	Body     []byte
}

// Len is the total wire size of f.
func (f Frame) Len() int {
	return HeaderLen + len(f.Sequence) + len(f.Body)
}

// Encode lays out header, zero-padded sequence digits and body.
func Encode(seq int, body []byte) ([]byte, error) {
	total := HeaderLen + SequenceLen + len(body)
	if total > MaxFrameLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, total)
	}
	buf := make([]byte, total)
	buf[2] = byte(total / 256)
	buf[3] = byte(total % 256)
	copy(buf[HeaderLen:], FormatSequence(seq))
	copy(buf[HeaderLen+SequenceLen:], body)
	return buf, nil
}

// DecodeHeader returns the total frame length declared by h.
func DecodeHeader(h []byte) (int, error) {
	if len(h) != HeaderLen {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(h))
	}
	total := int(h[2])*256 + int(h[3])
	if total < HeaderLen {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, total)
	}
	return total, nil
}

// ReadFrame reads exactly one frame. A stream that ends cleanly before the
// first header byte returns io.EOF; any shorter read afterwards is truncation.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrTruncatedFrame
		}
		return Frame{}, err
	}
	total, err := DecodeHeader(header[:])
	if err != nil {
		return Frame{}, err
	}
	payload := make([]byte, total-HeaderLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: want %d payload bytes", ErrTruncatedFrame, len(payload))
		}
		return Frame{}, err
	}
	return SplitPayload(payload)
}

// WriteFrame encodes and writes a frame in a single Write call.
func WriteFrame(w io.Writer, seq int, body []byte) error {
	buf, err := Encode(seq, body)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// SplitPayload separates the sequence text from the XML body. The sequence
// text is not validated here.
func SplitPayload(payload []byte) (Frame, error) {
	if len(payload) < SequenceLen {
		return Frame{}, fmt.Errorf("%w: payload %d bytes", ErrShortPayload, len(payload))
	}
	return Frame{
		Sequence: string(payload[:SequenceLen]),
		Body:     payload[SequenceLen:],
	}, nil
}

func FormatSequence(seq int) string {
	seq %= 10000
	if seq < 0 {
		seq += 10000
	}
	return fmt.Sprintf("%04d", seq)
}

// ParseSequence converts inbound sequence text, substituting InvalidSequence
// for anything that is not a number.
func ParseSequence(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return InvalidSequence
	}
	return n
}
