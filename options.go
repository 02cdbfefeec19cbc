package zerog

import (
	"os"
	"time"

	"github.com/jburman/ZeroG-sub001/cache"
	"github.com/jburman/ZeroG-sub001/utils"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Logger utils.Logger `yaml:"-"`
	// MaxFingerprintSource bounds the length of a query key; longer
	// queries are never cached.
	MaxFingerprintSource int                   `yaml:"max_fingerprint_source"`
	Eviction             cache.EvictionOptions `yaml:"eviction"`
	// CompiledCacheSize is the number of compiled JSON constraints kept.
	CompiledCacheSize int  `yaml:"compiled_cache_size"`
	DisableCache      bool `yaml:"disable_cache"`
}

func (o *Options) SetDefaults() {
	if o.MaxFingerprintSource <= 0 {
		o.MaxFingerprintSource = 4096
	}
	if o.CompiledCacheSize <= 0 {
		o.CompiledCacheSize = 1024
	}
	// a negative interval disables the background sweep and stays negative,
	// so applying the defaults twice changes nothing
	if o.Eviction.Interval == 0 {
		o.Eviction.Interval = time.Minute
	}
	o.Eviction.SetDefaults()
}

// LoadOptions reads options from a YAML file and applies the defaults.
func LoadOptions(path string) (opts Options, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if err = yaml.Unmarshal(data, &opts); err != nil {
		return opts, err
	}
	opts.SetDefaults()
	return opts, nil
}
