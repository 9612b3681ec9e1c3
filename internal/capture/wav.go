package capture

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

const wavHeaderSize = 44

// wavWriter appends 16-bit PCM to a WAV file, re-patching the header sizes on
// every write so the in-progress file stays readable by snapshot copies.
type wavWriter struct {
	mu         sync.Mutex
	f          *os.File
	sampleRate int
	channels   int
	dataBytes  uint32
}

func newWAVWriter(path string, sampleRate int, channels int) (*wavWriter, error) {
	if channels <= 0 {
		channels = 1
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open wav %q: %w", path, err)
	}

	w := &wavWriter{f: f, sampleRate: sampleRate, channels: channels}
	if err := w.patchHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// Write appends raw little-endian PCM bytes.
func (w *wavWriter) Write(pcm []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return 0, os.ErrClosed
	}
	n, err := w.f.WriteAt(pcm, int64(wavHeaderSize)+int64(w.dataBytes))
	w.dataBytes += uint32(n)
	if err != nil {
		return n, fmt.Errorf("append pcm: %w", err)
	}
	return n, w.patchHeader()
}

// Close finalizes the header and releases the file handle.
func (w *wavWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	err := w.patchHeader()
	if closeErr := w.f.Close(); err == nil {
		err = closeErr
	}
	w.f = nil
	return err
}

// patchHeader writes the 44-byte PCM WAV header with current sizes.
func (w *wavWriter) patchHeader() error {
	const bitsPerSample = 16
	byteRate := w.sampleRate * w.channels * (bitsPerSample / 8)
	blockAlign := w.channels * (bitsPerSample / 8)

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], 36+w.dataBytes)
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], w.dataBytes)

	if _, err := w.f.WriteAt(header, 0); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	return nil
}
