package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock_RoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("TRAAAAW128F429D538 "), 512)
	random := make([]byte, 1024)
	for i := range random {
		random[i] = byte(i*7919 + i*i)
	}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		for name, data := range map[string][]byte{"compressible": compressible, "random": random, "empty": {}} {
			t.Run(c.String()+"/"+name, func(t *testing.T) {
				block, err := CompressBlock(data, c)
				require.NoError(t, err)

				got, err := DecompressBlock(block, c)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(got))
				assert.True(t, bytes.Equal(data, got))
			})
		}
	}
}

func TestBlock_CompressesRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4}, 4096)
	block, err := CompressBlock(data, CompressionLZ4)
	require.NoError(t, err)
	assert.Less(t, len(block), len(data)/2)
}

func TestBlock_Corrupt(t *testing.T) {
	_, err := DecompressBlock([]byte{1, 2, 3}, CompressionLZ4)
	assert.ErrorIs(t, err, ErrCorruptBlock)

	block, err := CompressBlock(bytes.Repeat([]byte("a"), 1000), CompressionLZ4)
	require.NoError(t, err)
	_, err = DecompressBlock(block[:BlockHeaderSize+2], CompressionLZ4)
	assert.ErrorIs(t, err, ErrCorruptBlock)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, c)

	c, err = ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, CompressionZSTD, c)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}

func TestJSON_ByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	var out map[string]int
	require.NoError(t, c.Unmarshal(MustMarshal(c, map[string]int{"k": 1}), &out))
	assert.Equal(t, 1, out["k"])

	_, ok = ByName("gob")
	assert.False(t, ok)
}
