package core

import (
	"testing"

	"github.com/encodeous/dvnet/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func sampleAdvert() Advert {
	return Advert{
		DistanceVector: state.DistanceVector{
			Source: 7,
			Entries: []state.VectorEntry{
				{Dest: 1, Cost: 3},
				{Dest: 7, Cost: 0},
				{Dest: 300000, Cost: state.INF},
			},
		},
		Seqno: 1 << 40,
	}
}

func TestAdvert_RoundTrip(t *testing.T) {
	key := state.GenerateKey()
	for _, k := range []*state.NetworkKey{nil, &key} {
		b, err := MarshalAdvert(sampleAdvert(), k)
		require.NoError(t, err)
		got, err := UnmarshalAdvert(b, k)
		require.NoError(t, err)
		if diff := cmp.Diff(sampleAdvert(), got); diff != "" {
			t.Errorf("advert mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestAdvert_Authentication(t *testing.T) {
	key := state.GenerateKey()
	other := state.GenerateKey()

	signed, err := MarshalAdvert(sampleAdvert(), &key)
	require.NoError(t, err)
	unsigned, err := MarshalAdvert(sampleAdvert(), nil)
	require.NoError(t, err)

	_, err = UnmarshalAdvert(signed, &other)
	assert.ErrorIs(t, err, ErrBadMac)

	_, err = UnmarshalAdvert(unsigned, &key)
	assert.ErrorIs(t, err, ErrMissingMac)

	tampered := append([]byte(nil), signed...)
	tampered[1] ^= 0x01 // source
	_, err = UnmarshalAdvert(tampered, &key)
	assert.ErrorIs(t, err, ErrBadMac)

	// a receiver without a key ignores the mac
	_, err = UnmarshalAdvert(signed, nil)
	assert.NoError(t, err)
}

func TestAdvert_Malformed(t *testing.T) {
	b, err := MarshalAdvert(sampleAdvert(), nil)
	require.NoError(t, err)

	for i := 1; i < len(b); i++ {
		_, err := UnmarshalAdvert(b[:i], nil)
		// every prefix either cuts a field or loses entries, and cut fields must be rejected
		if err != nil {
			assert.ErrorIs(t, err, ErrMalformedAdvert, "prefix of length %d", i)
		}
	}

	_, err = UnmarshalAdvert(nil, nil)
	assert.ErrorIs(t, err, ErrMalformedAdvert)

	var noDest []byte
	noDest = protowire.AppendTag(noDest, advSource, protowire.VarintType)
	noDest = protowire.AppendVarint(noDest, 1)
	noDest = protowire.AppendTag(noDest, advEntry, protowire.BytesType)
	noDest = protowire.AppendBytes(noDest, protowire.AppendVarint(protowire.AppendTag(nil, entryCost, protowire.VarintType), 5))
	_, err = UnmarshalAdvert(noDest, nil)
	assert.ErrorIs(t, err, ErrMalformedAdvert)
}

func TestAdvert_IdsOutOfRange(t *testing.T) {
	src := protowire.AppendTag(nil, advSource, protowire.VarintType)
	src = protowire.AppendVarint(src, 1<<32+2)
	_, err := UnmarshalAdvert(src, nil)
	assert.ErrorIs(t, err, ErrMalformedAdvert)

	entry := protowire.AppendTag(nil, entryDest, protowire.VarintType)
	entry = protowire.AppendVarint(entry, 1<<32+3)
	dst := protowire.AppendTag(nil, advSource, protowire.VarintType)
	dst = protowire.AppendVarint(dst, 2)
	dst = protowire.AppendTag(dst, advEntry, protowire.BytesType)
	dst = protowire.AppendBytes(dst, entry)
	_, err = UnmarshalAdvert(dst, nil)
	assert.ErrorIs(t, err, ErrMalformedAdvert)

	// the largest id still decodes
	ok := protowire.AppendTag(nil, advSource, protowire.VarintType)
	ok = protowire.AppendVarint(ok, 1<<32-1)
	adv, err := UnmarshalAdvert(ok, nil)
	require.NoError(t, err)
	assert.Equal(t, state.NodeId(1<<32-1), adv.Source)
}

func TestAdvert_DataAfterMac(t *testing.T) {
	key := state.GenerateKey()
	b, err := MarshalAdvert(sampleAdvert(), &key)
	require.NoError(t, err)
	b = protowire.AppendTag(b, advSeqno, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	_, err = UnmarshalAdvert(b, &key)
	assert.ErrorIs(t, err, ErrMalformedAdvert)
}

func TestAdvert_UnknownFieldsAndClamping(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, advSource, protowire.VarintType)
	b = protowire.AppendVarint(b, 4)
	b = protowire.AppendTag(b, 9, protowire.BytesType) // unknown
	b = protowire.AppendBytes(b, []byte("future"))
	var entry []byte
	entry = protowire.AppendTag(entry, entryDest, protowire.VarintType)
	entry = protowire.AppendVarint(entry, 2)
	entry = protowire.AppendTag(entry, entryCost, protowire.VarintType)
	entry = protowire.AppendVarint(entry, 1<<40)
	b = protowire.AppendTag(b, advEntry, protowire.BytesType)
	b = protowire.AppendBytes(b, entry)

	adv, err := UnmarshalAdvert(b, nil)
	require.NoError(t, err)
	assert.Equal(t, state.NodeId(4), adv.Source)
	assert.Equal(t, []state.VectorEntry{{Dest: 2, Cost: state.INF}}, adv.Entries)
}

func TestAdvert_FitsSafeMtu(t *testing.T) {
	key := state.GenerateKey()
	adv := Advert{DistanceVector: state.DistanceVector{Source: 1}, Seqno: 1 << 62}
	for i := range 100 {
		adv.Entries = append(adv.Entries, state.VectorEntry{Dest: state.NodeId(i + 1000), Cost: state.INFM})
	}
	b, err := MarshalAdvert(adv, &key)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(b), state.SafeMTU)
}
