package simulation

import (
	"errors"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/cache"
	"github.com/sarchlab/memhier/mem/hierarchy"
	"github.com/sarchlab/memhier/mem/vm"
)

// LevelConfig describes one cache level.
type LevelConfig struct {
	Name          string `yaml:"name" json:"name"`
	Size          uint64 `yaml:"size" json:"size"`
	BlockSize     uint64 `yaml:"block_size" json:"block_size"`
	Associativity int    `yaml:"associativity" json:"associativity"`
}

// TLBConfig describes the translation cache. Zero sets and ways disable it.
type TLBConfig struct {
	Sets int `yaml:"sets" json:"sets"`
	Ways int `yaml:"ways" json:"ways"`
}

// Enabled tells if a TLB is configured.
func (c TLBConfig) Enabled() bool {
	return c.Sets > 0 && c.Ways > 0
}

// Config fixes the shape of a simulation. It is validated once by New.
type Config struct {
	PageSize     uint64 `yaml:"page_size" json:"page_size"`
	AddressWidth uint64 `yaml:"address_width" json:"address_width"`

	// WordSize is the number of bytes returned by a read.
	WordSize uint64 `yaml:"word_size" json:"word_size"`

	Levels          []LevelConfig `yaml:"levels" json:"levels"`
	WritePolicy     string        `yaml:"write_policy" json:"write_policy"`
	PagePolicy      string        `yaml:"page_policy" json:"page_policy"`
	FrameAllocation string        `yaml:"frame_allocation" json:"frame_allocation"`
	FirstFrame      uint64        `yaml:"first_frame" json:"first_frame"`
	TLB             TLBConfig     `yaml:"tlb" json:"tlb"`

	// Mappings are virtual page to frame entries present after construction
	// and after every reset.
	Mappings map[uint64]uint64 `yaml:"mappings,omitempty" json:"mappings,omitempty"`
}

// DefaultConfig returns 4 KiB pages in front of a 32 KiB L1, a 256 KiB L2 and
// a 2 MiB L3, all 2-way with 64-byte blocks.
func DefaultConfig() Config {
	return Config{
		PageSize:     4 * mem.KB,
		AddressWidth: 64,
		WordSize:     8,
		Levels: []LevelConfig{
			{Name: "L1", Size: 32 * mem.KB, BlockSize: 64, Associativity: 2},
			{Name: "L2", Size: 256 * mem.KB, BlockSize: 64, Associativity: 2},
			{Name: "L3", Size: 2 * mem.MB, BlockSize: 64, Associativity: 2},
		},
		WritePolicy:     hierarchy.WriteAllocate.String(),
		PagePolicy:      vm.AllocateOnFirstUse.String(),
		FrameAllocation: vm.Sequential.String(),
	}
}

// LoadConfig reads a YAML or JSON configuration file. Omitted fields keep
// the values of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes a YAML or JSON configuration. Omitted fields keep the
// values of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// MarshalYAMLFile encodes the configuration in the file format read by
// LoadConfig.
func (c Config) MarshalYAMLFile() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c Config) clone() Config {
	c.Levels = append([]LevelConfig(nil), c.Levels...)
	c.Mappings = maps.Clone(c.Mappings)

	return c
}

// Validate reports the first constraint the configuration violates as a
// *mem.ConfigError.
func (c Config) Validate() error {
	if !mem.IsPowerOfTwo(c.PageSize) {
		return mem.NewConfigError("page_size",
			"must be a power of two, got %d", c.PageSize)
	}

	if c.AddressWidth < 1 || c.AddressWidth > 64 {
		return mem.NewConfigError("address_width",
			"must be between 1 and 64, got %d", c.AddressWidth)
	}

	log2PageSize := mem.Log2(c.PageSize)
	if log2PageSize >= c.AddressWidth {
		return mem.NewConfigError("address_width",
			"of %d bits leaves no page number bits for %d offset bits",
			c.AddressWidth, log2PageSize)
	}

	if !mem.IsPowerOfTwo(c.WordSize) {
		return mem.NewConfigError("word_size",
			"must be a power of two, got %d", c.WordSize)
	}

	if err := c.validateLevels(); err != nil {
		return err
	}

	if err := c.validatePolicies(); err != nil {
		return err
	}

	if c.TLB.Sets < 0 || c.TLB.Ways < 0 || (c.TLB.Sets == 0) != (c.TLB.Ways == 0) {
		return mem.NewConfigError("tlb",
			"needs both sets and ways, or neither, got %d sets and %d ways",
			c.TLB.Sets, c.TLB.Ways)
	}

	return c.validateMappings(log2PageSize)
}

func (c Config) validateLevels() error {
	if len(c.Levels) == 0 {
		return mem.NewConfigError("levels", "must have at least one level")
	}

	names := make(map[string]bool)

	for i, l := range c.Levels {
		field := fmt.Sprintf("levels[%d]", i)

		if l.Name == "" {
			return mem.NewConfigError(field+".name", "must not be empty")
		}

		if names[l.Name] {
			return mem.NewConfigError(field+".name",
				"%q is used by another level", l.Name)
		}

		names[l.Name] = true

		err := l.builder().Validate()

		var configErr *mem.ConfigError
		if errors.As(err, &configErr) {
			return mem.NewConfigError(field+"."+configErr.Field,
				"%s", configErr.Reason)
		}

		if l.BlockSize > c.PageSize {
			return mem.NewConfigError(field+".block_size",
				"%d must not exceed the page size %d", l.BlockSize, c.PageSize)
		}

		if c.WordSize > l.BlockSize {
			return mem.NewConfigError("word_size",
				"%d must not exceed the block size %d of %s",
				c.WordSize, l.BlockSize, l.Name)
		}
	}

	return nil
}

func (c Config) validatePolicies() error {
	if _, err := hierarchy.ParseWritePolicy(c.WritePolicy); err != nil {
		return mem.NewConfigError("write_policy", "%v", err)
	}

	if _, err := vm.ParsePagePolicy(c.PagePolicy); err != nil {
		return mem.NewConfigError("page_policy", "%v", err)
	}

	if _, err := vm.ParseFrameAllocation(c.FrameAllocation); err != nil {
		return mem.NewConfigError("frame_allocation", "%v", err)
	}

	return nil
}

func (c Config) validateMappings(log2PageSize uint64) error {
	vpnBits := c.AddressWidth - log2PageSize
	pfnBits := 64 - log2PageSize

	for vpn, pfn := range c.Mappings {
		if vpnBits < 64 && vpn>>vpnBits != 0 {
			return mem.NewConfigError("mappings",
				"virtual page 0x%x exceeds %d page number bits", vpn, vpnBits)
		}

		if pfn>>pfnBits != 0 {
			return mem.NewConfigError("mappings",
				"frame 0x%x exceeds %d frame number bits", pfn, pfnBits)
		}
	}

	return nil
}

func (l LevelConfig) builder() cache.Builder {
	return cache.MakeBuilder().
		WithByteSize(l.Size).
		WithBlockSize(l.BlockSize).
		WithWayAssociativity(l.Associativity)
}
