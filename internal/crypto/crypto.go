// Package crypto derives database encryption keys from the master key.
// Keys are derived with HKDF-SHA256; the info string separates purposes and
// versions so one master key can serve several stores.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of a derived key in bytes (256 bits)
	KeySize = 32

	// MasterKeySize is the decoded size of MASTER_KEY in bytes
	MasterKeySize = 32

	// StorePurpose is the domain label of the results database key
	StorePurpose = "results-db"

	// StoreKeyVersion is bumped when the results database is re-keyed
	StoreKeyVersion = 1
)

// ParseMasterKey decodes a hex master key. It must decode to MasterKeySize
// bytes.
func ParseMasterKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("master key must be hex encoded: %w", err)
	}
	if len(key) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(key))
	}
	return key, nil
}

// DeriveKey derives a KeySize key from masterKey for purpose at version.
// info = purpose + ":v" + version
func DeriveKey(masterKey []byte, purpose string, version int) []byte {
	info := fmt.Sprintf("%s:v%d", purpose, version)

	// Salt is nil; the master key is already high entropy.
	r := hkdf.New(sha256.New, masterKey, nil, []byte(info))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF cannot run short for KeySize output
		panic(fmt.Sprintf("HKDF failed: %v", err))
	}
	return key
}

// DeriveStoreKey derives the results database key.
func DeriveStoreKey(masterKey []byte) []byte {
	return DeriveKey(masterKey, StorePurpose, StoreKeyVersion)
}
