package compress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{"": None, "none": None, "ZSTD": Zstd, " s2 ": S2, "lz4": LZ4} {
		got, err := ParseType(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseType("gzip")
	require.Error(t, err)
}

func TestCreateCodec(t *testing.T) {
	for _, typ := range []Type{None, Zstd, S2, LZ4} {
		c, err := CreateCodec(typ)
		require.NoError(t, err)
		require.Equal(t, typ, c.Type())
	}

	_, err := CreateCodec("brotli")
	require.Error(t, err)
}

func TestCodecs_RoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"name":"temperature","meanSquaredError":0.0125}`, 200))

	for _, typ := range []Type{None, Zstd, S2, LZ4} {
		t.Run(string(typ), func(t *testing.T) {
			c, err := CreateCodec(typ)
			require.NoError(t, err)

			compressed, err := c.Compress(payload)
			require.NoError(t, err)
			if typ != None {
				require.Less(t, len(compressed), len(payload))
			}

			got, err := c.Decompress(compressed)
			require.NoError(t, err)
			require.True(t, bytes.Equal(payload, got))
		})
	}
}

func TestCodecs_Empty(t *testing.T) {
	for _, typ := range []Type{Zstd, S2, LZ4} {
		c, _ := CreateCodec(typ)
		got, err := c.Decompress(nil)
		require.NoError(t, err)
		require.Empty(t, got)
	}
}

func TestCodecs_CorruptInput(t *testing.T) {
	garbage := []byte("definitely not a compressed frame")
	for _, typ := range []Type{Zstd, S2, LZ4} {
		c, _ := CreateCodec(typ)
		_, err := c.Decompress(garbage)
		require.Error(t, err, string(typ))
	}
}
