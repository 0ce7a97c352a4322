// Package keyset resolves provider signing keys by key id. Keys come from a
// provider-published JWKS document and are cached for the life of the
// process; an unknown key id triggers one refresh of the whole set.
package keyset

import (
	"crypto"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// SigningKey is a public verification key published by a provider.
type SigningKey struct {
	KeyID     string
	Algorithm string // "alg" pinned by the JWK, may be empty
	PublicKey crypto.PublicKey
}

// ParseKeySet decodes a JWKS document into signing keys indexed by key id.
// Entries that are not public signature keys, have no kid, or use a key
// type go-jose does not understand are skipped.
func ParseKeySet(raw []byte) (map[string]SigningKey, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}
	if len(doc.Keys) == 0 {
		return nil, errors.New("jwks has no keys")
	}

	keys := make(map[string]SigningKey, len(doc.Keys))
	for _, entry := range doc.Keys {
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(entry); err != nil {
			continue
		}
		if jwk.KeyID == "" || !jwk.IsPublic() || !jwk.Valid() {
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		keys[jwk.KeyID] = SigningKey{
			KeyID:     jwk.KeyID,
			Algorithm: jwk.Algorithm,
			PublicKey: jwk.Key,
		}
	}

	if len(keys) == 0 {
		return nil, errors.New("jwks has no usable signing keys")
	}
	return keys, nil
}
