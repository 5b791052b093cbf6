// Package config reads the engine's two configuration sources: the
// mandatory 8-byte shared-memory K/W file the runtime hands the backend,
// and the optional YAML/JSON catalogue file used by operators and tests.
package config

import (
	"encoding/binary"
	"fmt"
	"os"
)

// SharedSize is the fixed payload size of the shared-memory K/W file.
const SharedSize = 8

// Shared is the two integers the runtime persists for the backend to
// mmap read-only: K (first dynamic layer index) and W (prefetch window).
type Shared struct {
	K int32
	W int32
}

// ReadShared parses the little-endian 8-byte payload: bytes 0..4 are K,
// bytes 4..8 are W.
func ReadShared(path string) (Shared, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Shared{}, fmt.Errorf("config: read shared file %q: %w", path, err)
	}
	if len(data) != SharedSize {
		return Shared{}, fmt.Errorf("config: shared file %q is %d bytes, want %d", path, len(data), SharedSize)
	}
	return Shared{
		K: int32(binary.LittleEndian.Uint32(data[0:4])),
		W: int32(binary.LittleEndian.Uint32(data[4:8])),
	}, nil
}

// WriteShared writes the 8-byte payload in the layout ReadShared parses,
// for test harnesses that need to produce a shared file.
func WriteShared(path string, s Shared) error {
	var buf [SharedSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(s.K))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(s.W))
	if err := os.WriteFile(path, buf[:], 0o644); err != nil {
		return fmt.Errorf("config: write shared file %q: %w", path, err)
	}
	return nil
}
