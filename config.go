package ouroborosidata

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/i5heu/ouroboros-idata/internal/erasure"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
	"github.com/i5heu/ouroboros-idata/pkg/datamap"
	"github.com/i5heu/ouroboros-idata/pkg/immutable"
	"github.com/i5heu/ouroboros-idata/pkg/selfencrypt"
)

const (
	DefaultRSDataSlices   = 4
	DefaultRSParitySlices = 2
	DefaultCacheEntries   = 256
)

type Config struct {
	Paths            []string       `yaml:"paths"`
	MinimumFreeSpace int            `yaml:"minimumFreeSpace"` // in GB
	Logger           *logrus.Logger `yaml:"-"`

	RSDataSlices   uint8 `yaml:"rsDataSlices"`
	RSParitySlices uint8 `yaml:"rsParitySlices"`
	CacheEntries   int   `yaml:"cacheEntries"` // 0 disables the read cache

	MaxChunkSize int    `yaml:"maxChunkSize"` // defaults to chunk.MaxChunkSize
	Chunker      string `yaml:"chunker"`      // boxo chunker spec, defaults to buzhash
	Compression  string `yaml:"compression"`  // none, zstd or lzma
}

// LoadConfig reads a YAML config file. Unset fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config %s: %w", path, err)
	}
	cfg := &Config{
		RSDataSlices:   DefaultRSDataSlices,
		RSParitySlices: DefaultRSParitySlices,
		CacheEntries:   DefaultCacheEntries,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) erasureParams() erasure.Params {
	return erasure.Params{DataSlices: c.RSDataSlices, ParitySlices: c.RSParitySlices}
}

func (c *Config) encryptorOptions() (selfencrypt.Options, error) {
	comp, err := datamap.ParseCompression(c.Compression)
	if err != nil {
		return selfencrypt.Options{}, err
	}
	return selfencrypt.Options{Chunker: c.Chunker, Compression: comp}, nil
}

func (c *Config) checkConfig() error {
	if len(c.Paths) == 0 {
		return errors.New("no path provided in configuration")
	}

	if c.RSDataSlices == 0 && c.RSParitySlices == 0 {
		c.RSDataSlices, c.RSParitySlices = DefaultRSDataSlices, DefaultRSParitySlices
	}
	if err := c.erasureParams().Validate(); err != nil {
		return err
	}
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = chunk.MaxChunkSize
	}
	if c.MaxChunkSize <= selfencrypt.MinEncryptableSize || c.MaxChunkSize > chunk.MaxChunkSize {
		return fmt.Errorf("maxChunkSize must be between %d and %d bytes", selfencrypt.MinEncryptableSize+1, chunk.MaxChunkSize)
	}
	if c.CacheEntries < 0 {
		return errors.New("cacheEntries must not be negative")
	}
	if err := selfencrypt.ValidateChunker(c.Chunker); err != nil {
		return err
	}
	encOpts, err := c.encryptorOptions()
	if err != nil {
		return err
	}
	if err := immutable.CheckChunkLimit(c.MaxChunkSize, encOpts); err != nil {
		return err
	}

	path := c.Paths[0] // Currently only the first path is utilized
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create path %s: %w", path, err)
		}
		info, err = os.Stat(path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat path %s: %w", path, err)
	}
	if !info.IsDir() {
		return errors.New("path is not a directory")
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return fmt.Errorf("failed to read free space of %s: %w", path, err)
	}

	// Available blocks * size per block gives available space in bytes
	availableSpaceInGB := (stat.Bavail * uint64(stat.Bsize)) / (1024 * 1024 * 1024)
	if int(availableSpaceInGB) < c.MinimumFreeSpace {
		return errors.New("not enough space available on disk")
	}

	return nil
}
