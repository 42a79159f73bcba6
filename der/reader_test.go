package der

import (
	"encoding/asn1"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSequenceAndInteger(t *testing.T) {
	// SEQUENCE { INTEGER 1 }
	buf := []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	r := NewReader(buf, true)
	inner, raw, err := r.ReadSequence()
	require.NoError(t, err)
	assert.Equal(t, buf, raw)

	_, n, err := inner.ReadIntegerBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Int64())
	assert.True(t, inner.Done())
}

func TestReadOID(t *testing.T) {
	want := asn1.ObjectIdentifier{2, 23, 136, 1, 1, 1}
	encoded, err := asn1.Marshal(want)
	require.NoError(t, err)

	r := NewReader(encoded, true)
	got, err := r.ReadOID()
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestReadLengthRejectsTruncated(t *testing.T) {
	buf := []byte{0x30, 0x05, 0x02, 0x01}
	r := NewReader(buf, true)
	_, _, err := r.ReadSequence()
	assert.Error(t, err)
	var me *MalformedError
	assert.ErrorAs(t, err, &me)
}

func TestReadBitString(t *testing.T) {
	// BIT STRING with 0 unused bits, value 0xAB
	buf := []byte{0x03, 0x02, 0x00, 0xab}
	r := NewReader(buf, true)
	unused, bits, err := r.ReadBitString()
	require.NoError(t, err)
	assert.Equal(t, 0, unused)
	assert.Equal(t, []byte{0xab}, bits)
}

func TestReadUTCTime(t *testing.T) {
	// UTCTime "240101000000Z"
	buf := append([]byte{0x17, 0x0d}, []byte("240101000000Z")...)
	r := NewReader(buf, true)
	got, err := r.ReadUTCOrGeneralizedTime()
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.January, got.Month())
}

func TestReadGeneralizedTime(t *testing.T) {
	buf := append([]byte{0x18, 0x0f}, []byte("20240101000000Z")...)
	r := NewReader(buf, true)
	got, err := r.ReadUTCOrGeneralizedTime()
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())
}

func TestSubReaderWithRawPreservesExactBytes(t *testing.T) {
	// SEQUENCE { SET { INTEGER 5 } } -- caller wants the raw SET bytes to re-hash.
	inner := []byte{0x31, 0x03, 0x02, 0x01, 0x05}
	buf := append([]byte{0x30, byte(len(inner))}, inner...)

	r := NewReader(buf, true)
	seq, _, err := r.ReadSequence()
	require.NoError(t, err)

	sub, tag, raw, err := seq.SubReaderWithRaw()
	require.NoError(t, err)
	assert.Equal(t, TagSet, tag.Number)
	assert.Equal(t, inner, raw)

	_, n, err := sub.ReadIntegerBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.Int64())
}

func TestReadTagHighForm(t *testing.T) {
	// context class, constructed, tag number 31 (requires high-tag-number form)
	// 0xBF = 10111111 -> class bits 10 = context-specific (class 2), constructed, number=0x1f marker
	buf := []byte{0xBF, 0x1F, 0x00}
	r := NewReader(buf, true)
	tag, err := r.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, 31, tag.Number)
	assert.True(t, tag.Constructed)
}

func TestNonMinimalLengthRejectedInStrictMode(t *testing.T) {
	// Length encoded as long-form single byte 0x05 wrapped as 0x81 0x05
	// (non-minimal: DER requires the short form 0x05 here).
	buf := []byte{0x04, 0x81, 0x05, 0x01, 0x02, 0x03, 0x04, 0x05}
	r := NewReader(buf, true)
	_, err := r.ReadTag()
	require.NoError(t, err)
	_, err = r.ReadLength()
	assert.Error(t, err)
}
