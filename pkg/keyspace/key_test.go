package keyspace

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixRangeContainment(t *testing.T) {
	prefix := RecordPrefix("n", "d", "t")
	start, end := PrefixRange(prefix)
	assert.True(t, bytes.Equal(start, prefix))

	inside := Record("n", "d", "t", []byte{0x01})
	assert.True(t, bytes.Compare(inside, start) >= 0)
	require.NotNil(t, end)
	assert.True(t, bytes.Compare(inside, end) < 0)

	outside := Record("n", "d", "t2", []byte{0x00})
	assert.False(t, bytes.Compare(outside, start) >= 0 && bytes.Compare(outside, end) < 0)
}

func TestPrefixRangeAllFF(t *testing.T) {
	_, end := PrefixRange([]byte{0xFF, 0xFF})
	assert.Nil(t, end)
}

func TestSortableIntOrdering(t *testing.T) {
	vals := []int64{-100, -1, 0, 1, 100, 1 << 40}
	var prev []byte
	for _, v := range vals {
		enc := EncodeSortableInt(v)
		if prev != nil {
			assert.True(t, bytes.Compare(prev, enc) < 0, "expected %v to sort before next", v)
		}
		prev = enc
		dec, err := DecodeSortableInt(enc)
		require.NoError(t, err)
		assert.Equal(t, v, dec)
	}
}

func TestDecimalLexOrdering(t *testing.T) {
	enc := DecimalLexEncoder{}
	inputs := []string{"-100", "-1.5", "-0.001", "0", "0.001", "1.5", "100"}
	var prev []byte
	for _, s := range inputs {
		r, ok := new(big.Rat).SetString(s)
		require.True(t, ok)
		b, err := enc.Encode(r)
		require.NoError(t, err, s)
		if prev != nil {
			assert.True(t, bytes.Compare(prev, b) < 0, "expected %s to sort after previous", s)
		}
		prev = b

		dec, err := enc.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, 0, r.Cmp(dec), "round-trip mismatch for %s: got %s", s, dec.RatString())
	}
}

func TestDecimalLexZero(t *testing.T) {
	enc := DecimalLexEncoder{}
	b, err := enc.Encode(new(big.Rat))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80}, b)
	dec, err := enc.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, 0, dec.Sign())
}

func TestDecodeRefRoundTrip(t *testing.T) {
	id := []byte{0x01, 0x02}
	key := Ref("n", "d", "person", id, "comment", "author", []byte{0x09})
	ft, ff, fk, err := DecodeRef(key)
	require.NoError(t, err)
	assert.Equal(t, "comment", ft)
	assert.Equal(t, "author", ff)
	assert.Equal(t, []byte{0x09}, fk)
}

func TestRefPrefixBoundsRefKeys(t *testing.T) {
	id := []byte{0x01}
	prefix := RefPrefix("n", "d", "person", id)
	start, end := PrefixRange(prefix)
	key := Ref("n", "d", "person", id, "comment", "author", []byte{0x02})
	assert.True(t, bytes.Compare(key, start) >= 0)
	assert.True(t, bytes.Compare(key, end) < 0)

	otherID := Ref("n", "d", "person", []byte{0x02}, "comment", "author", []byte{0x02})
	assert.False(t, bytes.Compare(otherID, start) >= 0 && bytes.Compare(otherID, end) < 0)
}
