package evm

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/tarancss/ethcli"
)

// Pins the client call shape Balance depends on; a dependency bump that changes it breaks here, not at a call site.
var _ func(string, string) (*big.Int, *big.Int, error) = new(ethcli.EthCli).GetBalance

type testSigner struct {
	addr string
	key  string // hex encoded
}

func (s testSigner) Address() string { return s.addr }

func (s testSigner) PrivateKey() ([]byte, error) { return hex.DecodeString(s.key) }

// TestBind covers descriptor parsing and key material handling, the only work Bind does without a node.
func TestBind(t *testing.T) {
	e := &EVM{chainID: big.NewInt(1337), timeout: time.Second}

	// read-only binding: all reads wired, every state change refused
	reg, err := e.Bind(nil)
	if err != nil {
		t.Fatalf("Error binding read-only:%e", err)
	}

	if _, err = reg.Transfer(context.Background(), "0xdef0", 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly on Transfer, got %e", err)
	}

	if _, err = reg.List(context.Background(), 1, big.NewInt(1000)); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly on List, got %e", err)
	}

	// signing binding: a transactor is built for the chain id
	s := testSigner{
		addr: "0x2a65aca4d5fc5b5c859090a6c34d164135398226",
		key:  "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291",
	}

	reg, err = e.Bind(s)
	if err != nil {
		t.Fatalf("Error binding with signer:%e", err)
	}

	if b := reg.(*bound); b.opts == nil {
		t.Error("no transactor on a signing binding")
	}

	// garbage key material must be refused at bind time, not at first transaction
	if _, err = e.Bind(testSigner{key: "abcd"}); err == nil {
		t.Error("expected error binding with a malformed key")
	}
}

func TestReverted(t *testing.T) {
	cases := []struct {
		err error
		exp bool
	}{
		{nil, false},
		{errors.New("execution reverted: nonexistent token"), true},
		{errors.New("connection refused"), false},
	}

	for _, c := range cases {
		if reverted(c.err) != c.exp {
			t.Errorf("reverted(%v) != %v", c.err, c.exp)
		}
	}
}
