package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/navindex/spatial"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		config func(c *Index)
	}{
		{
			name:   "missing name",
			config: func(c *Index) { c.Name = "" },
		},
		{
			name:   "zero cell size",
			config: func(c *Index) { c.CellSize = spatial.NewVec3(1, 0, 1) },
		},
		{
			name:   "negative cell size",
			config: func(c *Index) { c.CellSize = spatial.NewVec3(-1, 1, 1) },
		},
		{
			name:   "bucket count not a power of two",
			config: func(c *Index) { c.BucketCount = 1000 },
		},
		{
			name:   "zero bucket count",
			config: func(c *Index) { c.BucketCount = 0 },
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := Default()
			test.config(&c)

			err := c.Validate()
			require.Error(t, err)
			require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("parses a config", func(t *testing.T) {
		c, err := Parse(strings.NewReader(`
name: level-01
cell_size: [2, 2, 1]
bucket_count: 256
validate_after_load: true
`))
		require.NoError(t, err)
		require.Equal(t, Index{
			Name:              "level-01",
			CellSize:          spatial.NewVec3(2, 2, 1),
			BucketCount:       256,
			ValidateAfterLoad: true,
		}, c)
	})

	t.Run("missing fields keep their default", func(t *testing.T) {
		c, err := Parse(strings.NewReader("bucket_count: 64\n"))
		require.NoError(t, err)
		require.Equal(t, 64, c.BucketCount)
		require.Equal(t, Default().CellSize, c.CellSize)
		require.Equal(t, "default", c.Name)
	})

	t.Run("empty document returns the default", func(t *testing.T) {
		c, err := Parse(strings.NewReader(""))
		require.NoError(t, err)
		require.Equal(t, Default(), c)
	})

	t.Run("unknown field returns an error", func(t *testing.T) {
		_, err := Parse(strings.NewReader("bucket_size: 64\n"))
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
	})

	t.Run("invalid values return an error", func(t *testing.T) {
		_, err := Parse(strings.NewReader("bucket_count: 100\n"))
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
	})
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns the default", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		require.Equal(t, Default(), c)
	})

	t.Run("loads a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.yaml")
		err := os.WriteFile(path, []byte("name: test\nbucket_count: 32\n"), 0o644)
		require.NoError(t, err)

		c, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, "test", c.Name)
		require.Equal(t, 32, c.BucketCount)
	})

	t.Run("missing file returns an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
	})
}
