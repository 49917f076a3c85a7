package pqutil_test

import (
	"testing"

	"github.com/apache/arrow/go/v16/parquet/compress"
	"github.com/cvmtools/cvmquery/internal/pqutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCompression(t *testing.T) {
	for _, name := range pqutil.CompressionNames {
		_, err := pqutil.GetCompression(name)
		require.NoError(t, err, name)
	}

	for _, name := range []string{"uncompressed", "snappy", "gzip", "zstd"} {
		codec, err := pqutil.GetCompression(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, pqutil.CompressionName(codec))
	}

	codec, err := pqutil.GetCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, compress.Codecs.Zstd, codec)

	_, err = pqutil.GetCompression("bogus")
	assert.ErrorContains(t, err, "invalid compression codec bogus")
}
