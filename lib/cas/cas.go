// Package cas resolves retrieval URLs for documents kept in an external content-addressed store. Only URL construction
// lives here, the store's upload and retrieval protocol is out of this core's scope.
package cas

import (
	"errors"
	"strings"
)

// ErrNoHash is returned when an asset carries no document hash.
var ErrNoHash = errors.New("no content hash to resolve")

// URL joins the store gateway base with a content hash. Hashes are sometimes stored with an "ipfs://" prefix, which is
// stripped before joining.
func URL(gateway, hash string) (string, error) {
	hash = strings.TrimPrefix(strings.TrimSpace(hash), "ipfs://")
	if hash == "" {
		return "", ErrNoHash
	}

	if gateway != "" && !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}

	return gateway + hash, nil
}
