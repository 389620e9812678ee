package transcode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// PCM is a little-endian 16-bit PCM buffer.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Duration returns the playback length of the buffer.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	samples := len(p.Data) / 2 / p.Channels
	return time.Duration(samples) * time.Second / time.Duration(p.SampleRate)
}

// ReadPCM decodes a 16-bit PCM WAV file.
func ReadPCM(path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return PCM{}, fmt.Errorf("invalid wav file: %s", path)
	}
	if dec.BitDepth != 16 {
		return PCM{}, fmt.Errorf("unsupported wav bit depth %d", dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("decode wav: %w", err)
	}

	data := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(sample)))
	}
	return PCM{
		Data:       data,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// WritePCM encodes p as a 16-bit WAV file.
func WritePCM(w io.WriteSeeker, p PCM) error {
	if len(p.Data)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	channels := p.Channels
	if channels <= 0 {
		channels = TargetChannels
	}

	samples := make([]int, len(p.Data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(p.Data[i*2:])))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: p.SampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(w, p.SampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WritePCMFile writes p to a new WAV file at path.
func WritePCMFile(path string, p PCM) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := WritePCM(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
