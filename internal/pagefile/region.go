package pagefile

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region pairs an open, read-only file descriptor for a weights file with
// the base virtual address of a whole-file mapping covering it. All
// prefetch/evict operations address sub-ranges by file offset; the
// in-memory address of a byte at offset o is Base()+o. The region is
// shared: cooperating PrefetchRange calls remap sub-ranges of the same
// virtual pages via MAP_FIXED, which is the coordination mechanism — the
// file contents are never modified.
type Region struct {
	file *os.File
	mem  []byte
	size int64
}

// Open memory-maps the whole of path read-only and shared, returning a
// Region anchored at a stable base address that PrefetchRange and
// EvictRange address sub-ranges of by file offset.
func Open(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pagefile: open %q: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagefile: stat %q: %w", path, err)
	}
	size := fi.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("pagefile: %q is empty", path)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagefile: mmap %q: %w", path, err)
	}
	return &Region{file: f, mem: mem, size: size}, nil
}

// Base returns the base virtual address of the whole-file mapping.
func (r *Region) Base() uintptr {
	return uintptr(unsafe.Pointer(&r.mem[0]))
}

// Size returns the length in bytes of the mapped file.
func (r *Region) Size() int64 { return r.size }

// Fd returns the underlying read-only file descriptor, for the remap
// calls in remap.go that need to pass it to the platform mmap syscall.
func (r *Region) Fd() int { return int(r.file.Fd()) }

// Close unmaps the region and closes the file descriptor. Any sub-range
// remapped by a prior PrefetchRange is unmapped along with it.
func (r *Region) Close() error {
	if err := unix.Munmap(r.mem); err != nil {
		return fmt.Errorf("pagefile: munmap: %w", err)
	}
	return r.file.Close()
}
