// Package config loads the boot configuration file consumed by the UEFI
// loader and surfaced to the kernel via boot info, per spec.md §6.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the subset of the loader's config file the kernel itself
// reads out of boot info.
type Config struct {
	KernelPath           string `toml:"kernel_path"`
	PhysicalMemoryOffset uint64 `toml:"physical_memory_offset"`
	KernelStackAddress   uint64 `toml:"kernel_stack_address"`
	KernelStackPages     uint64 `toml:"kernel_stack_pages"`
	KernelStackAutoGrow  bool   `toml:"kernel_stack_auto_grow"`
	LoadApps             bool   `toml:"load_apps"`
}

// Default mirrors the virtual address layout table in spec.md §6.
func Default() Config {
	return Config{
		KernelPath:           "\\KERNEL.ELF",
		PhysicalMemoryOffset: 0xFFFF_8000_0000_0000,
		KernelStackAddress:   0xFFFF_FF02_0000_0000,
		KernelStackPages:     512,
		KernelStackAutoGrow:  false,
		LoadApps:             true,
	}
}

// Load parses a TOML config file at path, falling back to field-by-field
// defaults for anything the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}
