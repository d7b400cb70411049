//go:build unix

package wasm

import "golang.org/x/sys/unix"

func allocateMemory(size int) ([]byte, bool, error) {
	// Anonymous as this is not an actual file, but a memory,
	// Private as this is in-process memory region.
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}

func freeMemory(buf []byte, mapped bool) error {
	if !mapped {
		return nil
	}
	return unix.Munmap(buf)
}
