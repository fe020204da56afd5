package cas

import (
	"errors"
	"testing"
)

func TestURL(t *testing.T) {
	cases := []struct {
		name, gateway, hash, want string
		err                       error
	}{
		{"plain", "https://ipfs.io/ipfs/", "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", "https://ipfs.io/ipfs/QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", nil},
		{"no trailing slash", "https://ipfs.io/ipfs", "Qm123", "https://ipfs.io/ipfs/Qm123", nil},
		{"scheme prefix stripped", "https://ipfs.io/ipfs/", "ipfs://Qm123", "https://ipfs.io/ipfs/Qm123", nil},
		{"empty hash", "https://ipfs.io/ipfs/", "", "", ErrNoHash},
		{"blank hash", "https://ipfs.io/ipfs/", "  ", "", ErrNoHash},
	}
	for _, c := range cases {
		got, err := URL(c.gateway, c.hash)
		if !errors.Is(err, c.err) {
			t.Errorf("%s: err=%v want %v", c.name, err, c.err)
		}
		if got != c.want {
			t.Errorf("%s: URL=%q want %q", c.name, got, c.want)
		}
	}
}
