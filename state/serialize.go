package state

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NetworkKey is a shared secret used to authenticate advertisements.
type NetworkKey [32]byte

func GenerateKey() NetworkKey {
	k := NetworkKey{}
	_, err := rand.Read(k[:])
	if err != nil {
		panic(err)
	}
	return k
}

func (k NetworkKey) MarshalText() ([]byte, error) {
	return []byte(base64.StdEncoding.EncodeToString(k[:])), nil
}

func (k *NetworkKey) UnmarshalText(text []byte) error {
	data, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(data) != len(k) {
		return fmt.Errorf("network key must be %d bytes, got %d", len(k), len(data))
	}
	*k = NetworkKey(data)
	return nil
}
