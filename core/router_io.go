package core

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"math"

	"github.com/encodeous/dvnet/state"
	"golang.org/x/crypto/blake2s"
	"google.golang.org/protobuf/encoding/protowire"
)

// Advert layout, in protobuf wire format:
//
//	1: source  varint
//	2: seqno   varint
//	3: entry   bytes, repeated { 1: dest varint, 2: cost varint }
//	15: mac    bytes, last field, blake2s-128 over everything before it
const (
	advSource protowire.Number = 1
	advSeqno  protowire.Number = 2
	advEntry  protowire.Number = 3
	advMac    protowire.Number = 15

	entryDest protowire.Number = 1
	entryCost protowire.Number = 2

	macSize = 16
)

var (
	ErrMalformedAdvert = errors.New("malformed advertisement")
	ErrMissingMac      = errors.New("advertisement is not authenticated")
	ErrBadMac          = errors.New("advertisement failed authentication")
)

// Advert is a distance vector as it travels between neighbours.
type Advert struct {
	state.DistanceVector
	// Seqno increases with every advert a node sends, so stale packets can be dropped
	Seqno uint64
}

func computeMac(key *state.NetworkKey, data []byte) ([]byte, error) {
	h, err := blake2s.New128(key[:])
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// MarshalAdvert encodes an advert. When key is not nil the advert is authenticated.
func MarshalAdvert(adv Advert, key *state.NetworkKey) ([]byte, error) {
	b := make([]byte, 0, 16+len(adv.Entries)*8)
	b = protowire.AppendTag(b, advSource, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(adv.Source))
	b = protowire.AppendTag(b, advSeqno, protowire.VarintType)
	b = protowire.AppendVarint(b, adv.Seqno)

	var entry []byte
	for _, e := range adv.Entries {
		entry = entry[:0]
		entry = protowire.AppendTag(entry, entryDest, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(e.Dest))
		entry = protowire.AppendTag(entry, entryCost, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(state.ClampCost(e.Cost)))
		b = protowire.AppendTag(b, advEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}

	if key != nil {
		mac, err := computeMac(key, b)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, advMac, protowire.BytesType)
		b = protowire.AppendBytes(b, mac)
	}
	return b, nil
}

func malformed(what string, n int) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedAdvert, what, protowire.ParseError(n))
}

// UnmarshalAdvert decodes an advert. When key is not nil the advert must carry a valid MAC.
// Unknown fields are skipped and costs above INF are clamped.
func UnmarshalAdvert(b []byte, key *state.NetworkKey) (Advert, error) {
	adv := Advert{}
	hasSource := false
	var mac []byte
	signed := 0

	for off := 0; off < len(b); {
		if mac != nil {
			return Advert{}, fmt.Errorf("%w: data after mac", ErrMalformedAdvert)
		}
		num, typ, n := protowire.ConsumeTag(b[off:])
		if n < 0 {
			return Advert{}, malformed("tag", n)
		}
		fieldStart := off
		off += n
		switch {
		case num == advSource && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b[off:])
			if n < 0 {
				return Advert{}, malformed("source", n)
			}
			if v > math.MaxUint32 {
				return Advert{}, fmt.Errorf("%w: source %d out of range", ErrMalformedAdvert, v)
			}
			adv.Source = state.NodeId(v)
			hasSource = true
			off += n
		case num == advSeqno && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b[off:])
			if n < 0 {
				return Advert{}, malformed("seqno", n)
			}
			adv.Seqno = v
			off += n
		case num == advEntry && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b[off:])
			if n < 0 {
				return Advert{}, malformed("entry", n)
			}
			e, err := unmarshalEntry(v)
			if err != nil {
				return Advert{}, err
			}
			adv.Entries = append(adv.Entries, e)
			off += n
		case num == advMac && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b[off:])
			if n < 0 {
				return Advert{}, malformed("mac", n)
			}
			mac = v
			signed = fieldStart
			off += n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b[off:])
			if n < 0 {
				return Advert{}, malformed("unknown field", n)
			}
			off += n
		}
	}

	if !hasSource {
		return Advert{}, fmt.Errorf("%w: no source", ErrMalformedAdvert)
	}
	if key != nil {
		if mac == nil {
			return Advert{}, ErrMissingMac
		}
		expected, err := computeMac(key, b[:signed])
		if err != nil {
			return Advert{}, err
		}
		if len(mac) != macSize || subtle.ConstantTimeCompare(mac, expected) != 1 {
			return Advert{}, ErrBadMac
		}
	}
	return adv, nil
}

func unmarshalEntry(b []byte) (state.VectorEntry, error) {
	e := state.VectorEntry{Cost: state.INF}
	hasDest := false
	for off := 0; off < len(b); {
		num, typ, n := protowire.ConsumeTag(b[off:])
		if n < 0 {
			return e, malformed("entry tag", n)
		}
		off += n
		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b[off:])
			if n < 0 {
				return e, malformed("entry field", n)
			}
			off += n
			continue
		}
		v, n := protowire.ConsumeVarint(b[off:])
		if n < 0 {
			return e, malformed("entry value", n)
		}
		off += n
		switch num {
		case entryDest:
			if v > math.MaxUint32 {
				return e, fmt.Errorf("%w: destination %d out of range", ErrMalformedAdvert, v)
			}
			e.Dest = state.NodeId(v)
			hasDest = true
		case entryCost:
			e.Cost = state.ClampCost(state.Cost(min(v, uint64(state.INF))))
		}
	}
	if !hasDest {
		return e, fmt.Errorf("%w: entry without destination", ErrMalformedAdvert)
	}
	return e, nil
}
