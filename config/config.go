package config

import (
	"bytes"
	"io"
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/navindex/spatial"
	"gopkg.in/yaml.v3"
)

const (
	ErrTypeInvalidConfig = "invalid-config"
)

// Index is the tuning of a graph node index.
//
// Example:
//
//	name: level-01
//	cell_size: [4, 4, 2]
//	bucket_count: 4096
//	validate_after_load: true
type Index struct {
	// The name of the graph, used as metrics label.
	Name string `yaml:"name"`

	// The world size of a hash cell on each axis.
	CellSize spatial.Vec3 `yaml:"cell_size"`

	// The number of hash buckets. Must be a power of two.
	BucketCount int `yaml:"bucket_count"`

	// Checks the index consistency after each bulk load.
	ValidateAfterLoad bool `yaml:"validate_after_load"`
}

// Default returns the index tuning used when no file is given.
func Default() Index {
	return Index{
		Name:        "default",
		CellSize:    spatial.NewVec3(4, 4, 4),
		BucketCount: 4096,
	}
}

// Validate returns an error when the tuning cannot be used to create an
// index.
func (c Index) Validate() error {
	if c.Name == "" {
		return errors.New("missing graph name").
			WithType(ErrTypeInvalidConfig)
	}

	for _, v := range c.CellSize {
		if !(v > 0) {
			return errors.New("cell size must be positive").
				WithType(ErrTypeInvalidConfig).
				WithTag("cell_size", c.CellSize)
		}
	}

	if !spatial.IsPowerOfTwo(c.BucketCount) {
		return errors.New("bucket count must be a power of two").
			WithType(ErrTypeInvalidConfig).
			WithTag("bucket_count", c.BucketCount).
			WithTag("suggested", spatial.NextPowerOfTwo(c.BucketCount))
	}

	return nil
}

// Load reads the index tuning from a YAML file. Missing fields keep their
// default value and unknown fields are rejected. An empty path returns the
// default tuning.
func Load(path string) (Index, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Index{}, errors.New("reading index config failed").
			WithType(ErrTypeInvalidConfig).
			WithTag("path", path).
			Wrap(err)
	}

	c, err := Parse(bytes.NewReader(b))
	if err != nil {
		return Index{}, errors.New("loading index config failed").
			WithType(ErrTypeInvalidConfig).
			WithTag("path", path).
			Wrap(err)
	}
	return c, nil
}

// Parse decodes and validates the index tuning from YAML.
func Parse(r io.Reader) (Index, error) {
	c := Default()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(&c); err != nil && err != io.EOF {
		return Index{}, errors.New("decoding yaml failed").
			WithType(ErrTypeInvalidConfig).
			Wrap(err)
	}

	if err := c.Validate(); err != nil {
		return Index{}, err
	}
	return c, nil
}
