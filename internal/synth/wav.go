package synth

import (
	"encoding/binary"
	"fmt"
)

// decodedWAV holds the fields the Player cares about: PCM16 samples plus
// enough of the fmt sub-chunk to (re)configure the sink correctly.
type decodedWAV struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// decodeWAV parses a RIFF/WAVE container and extracts 16-bit PCM samples.
// No WAV-decoding library exists anywhere in the corpus this engine was
// grown from, so this walks the chunk list by hand. See DESIGN.md.
func decodeWAV(data []byte) (decodedWAV, error) {
	if len(data) < 12 {
		return decodedWAV{}, fmt.Errorf("%w: wav too short", errMalformedWAV)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return decodedWAV{}, fmt.Errorf("%w: not a RIFF/WAVE file", errMalformedWAV)
	}

	var (
		out        decodedWAV
		sawFmt     bool
		bitsPerSmp uint16
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			// Truncated trailing chunk; stop rather than index out of range.
			break
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return decodedWAV{}, fmt.Errorf("%w: fmt chunk too small", errMalformedWAV)
			}
			chunk := data[body : body+size]
			out.Channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			out.SampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			bitsPerSmp = binary.LittleEndian.Uint16(chunk[14:16])
			sawFmt = true

		case "data":
			if !sawFmt {
				return decodedWAV{}, fmt.Errorf("%w: data chunk before fmt chunk", errMalformedWAV)
			}
			if bitsPerSmp != 16 {
				return decodedWAV{}, fmt.Errorf("%w: unsupported bit depth %d", errMalformedWAV, bitsPerSmp)
			}
			samples := make([]int16, size/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(data[body+i*2 : body+i*2+2]))
			}
			out.Samples = samples
		}

		// Chunks are word-aligned; a chunk with an odd size carries one
		// byte of padding that isn't part of its declared size.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !sawFmt || out.Samples == nil {
		return decodedWAV{}, fmt.Errorf("%w: missing fmt or data chunk", errMalformedWAV)
	}
	return out, nil
}
