//go:build !windows

package main

import (
	"fmt"
	"os"
	"syscall"
)

// openArena opens (creating and zero-extending if necessary) the arena file
// at path and memory-maps it PROT_READ|PROT_WRITE, MAP_SHARED so writes are
// visible to the backing file the same way a real PMEM-backed mapping would
// be, modeled on the mmap-a-file-as-an-arena idiom other persistent-memory
// pools in the ecosystem use. size is ignored if the file already exists
// and is larger.
func openArena(path string, size int) ([]byte, int, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, 0, fmt.Errorf("liumos: open arena: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("liumos: stat arena: %w", err)
	}
	if int(info.Size()) < size {
		if err := f.Truncate(int64(size)); err != nil {
			return nil, 0, fmt.Errorf("liumos: truncate arena: %w", err)
		}
	} else {
		size = int(info.Size())
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, 0, fmt.Errorf("liumos: mmap arena: %w", err)
	}
	return data, size, nil
}
