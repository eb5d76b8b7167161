package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// WAVFormat describes the sample layout of a PCM WAV stream
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// BlockAlign returns the size of one frame in bytes
func (f WAVFormat) BlockAlign() int {
	return int(f.Channels) * int(f.BitsPerSample) / 8
}

// WAV is a decoded RIFF/WAVE buffer
type WAV struct {
	Format WAVFormat
	Data   []byte
}

// Duration returns the playback length of the sample data
func (w *WAV) Duration() time.Duration {
	bytesPerSecond := int64(w.Format.SampleRate) * int64(w.Format.BlockAlign())
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(int64(len(w.Data)) * int64(time.Second) / bytesPerSecond)
}

// DecodeWAV parses a RIFF/WAVE buffer. A data chunk whose declared size
// overruns the buffer, as written by streaming encoders, is read to the end.
func DecodeWAV(b []byte) (*WAV, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE buffer")
	}

	var (
		w       WAV
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(b) {
				return nil, fmt.Errorf("truncated fmt chunk")
			}
			w.Format = WAVFormat{
				AudioFormat:   binary.LittleEndian.Uint16(b[body : body+2]),
				Channels:      binary.LittleEndian.Uint16(b[body+2 : body+4]),
				SampleRate:    binary.LittleEndian.Uint32(b[body+4 : body+8]),
				BitsPerSample: binary.LittleEndian.Uint16(b[body+14 : body+16]),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			end := body + size
			if size < 0 || end > len(b) {
				end = len(b)
			}
			w.Data = b[body:end]
			return &w, nil
		}

		// Chunks are word aligned
		pos = body + size + size%2
	}

	return nil, fmt.Errorf("missing data chunk")
}

// EncodeWAV writes a canonical 44-byte header followed by the sample data
func EncodeWAV(w *WAV) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(w.Data))

	le := binary.LittleEndian
	buf.WriteString("RIFF")
	binary.Write(&buf, le, uint32(36+len(w.Data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, le, uint32(16))
	binary.Write(&buf, le, w.Format.AudioFormat)
	binary.Write(&buf, le, w.Format.Channels)
	binary.Write(&buf, le, w.Format.SampleRate)
	binary.Write(&buf, le, uint32(int(w.Format.SampleRate)*w.Format.BlockAlign()))
	binary.Write(&buf, le, uint16(w.Format.BlockAlign()))
	binary.Write(&buf, le, w.Format.BitsPerSample)

	buf.WriteString("data")
	binary.Write(&buf, le, uint32(len(w.Data)))
	buf.Write(w.Data)

	return buf.Bytes()
}

// ConcatWAV joins WAV buffers sample-stream-wise into one buffer. All parts
// must share the same format. A single part is returned unchanged.
func ConcatWAV(parts [][]byte) ([]byte, error) {
	switch len(parts) {
	case 0:
		return nil, fmt.Errorf("no audio to concatenate")
	case 1:
		return parts[0], nil
	}

	var (
		format WAVFormat
		data   []byte
	)
	for i, part := range parts {
		w, err := DecodeWAV(part)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audio chunk %d: %w", i, err)
		}
		if i == 0 {
			format = w.Format
		} else if w.Format != format {
			return nil, fmt.Errorf("audio chunk %d format %+v differs from %+v", i, w.Format, format)
		}
		data = append(data, w.Data...)
	}

	return EncodeWAV(&WAV{Format: format, Data: data}), nil
}
