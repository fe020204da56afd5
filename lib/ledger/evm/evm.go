// Implements the ledger connection for EVM networks.
package evm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tarancss/ethcli"

	"github.com/medtrace/psync/lib/config"
	"github.com/medtrace/psync/lib/contract"
	"github.com/medtrace/psync/lib/ledger/types"
	"github.com/medtrace/psync/lib/provider"
	"github.com/medtrace/psync/lib/util"
)

// Interface descriptors of the deployed contract suite. These have to match the deployment bytecode, they are a
// compatibility surface.
const (
	registryABI = `[
	{"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"getAssetDetails","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"name","type":"string"},{"name":"batch","type":"string"},{"name":"mfgTime","type":"uint256"},{"name":"expTime","type":"uint256"},{"name":"composition","type":"string"},{"name":"storageConditions","type":"string"},{"name":"docHash","type":"string"},{"name":"manufacturer","type":"address"},{"name":"owner","type":"address"}]},
	{"name":"getOwnershipHistory","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"owners","type":"address[]"},{"name":"timestamps","type":"uint256[]"}]},
	{"name":"nextTokenId","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"transferAsset","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`
	marketABI = `[
	{"name":"listAsset","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"name":"getListing","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"seller","type":"address"},{"name":"price","type":"uint256"},{"name":"active","type":"bool"}]}
]`
	identityABI = `[
	{"name":"getRole","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint8"}]}
]`
)

// ErrReadOnly is returned by state-changing calls through a binding built without a signer.
var ErrReadOnly = errors.New("binding is read-only, no signer bound")

// EVM implements a connection to an EVM-type ledger network.
type EVM struct {
	ec       *ethclient.Client
	cli      *ethcli.EthCli // native balance lookups
	chainID  *big.Int
	registry common.Address
	market   common.Address
	identity common.Address
	timeout  time.Duration
}

// Init returns a connection to an EVM node, using the config secret for Basic Authentication when present.
// callTimeout bounds every chain call in seconds so a stalled node degrades to an error instead of hanging.
func Init(l config.LedgerConfig, callTimeout int) (*EVM, error) {
	rc, err := rpc.Dial(l.Node)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to EVM node in %s: %w", l.Node, err)
	}

	if l.Secret != "" {
		rc.SetHeader("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(l.Secret)))
	}

	cli := ethcli.Init(l.Node, l.Secret)
	if cli == nil {
		return nil, errors.New("cannot connect to EVM node in " + l.Node)
	}

	return &EVM{
		ec:       ethclient.NewClient(rc),
		cli:      cli,
		chainID:  big.NewInt(l.ChainID),
		registry: common.HexToAddress(l.Registry),
		market:   common.HexToAddress(l.Marketplace),
		identity: common.HexToAddress(l.Identity),
		timeout:  time.Duration(callTimeout) * time.Second,
	}, nil
}

// Close ends the connection.
func (e *EVM) Close() {
	e.ec.Close()
	e.cli.End()
}

// Balance returns the native currency balance of the account.
func (e *EVM) Balance(account string) (*big.Int, error) {
	bal, _, err := e.cli.GetBalance(account, "")
	if err != nil {
		return nil, fmt.Errorf("cannot get balance of %s: %w", account, err)
	}

	return bal, nil
}

// Bind constructs the typed contract handles for the given signer. Pure with respect to its inputs: only descriptor
// parsing and key material handling happen here, no network round-trips. A nil signer yields a read-only registry.
func (e *EVM) Bind(signer provider.Signer) (contract.Registry, error) {
	regABI, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("malformed registry descriptor: %w", err)
	}

	mktABI, err := abi.JSON(strings.NewReader(marketABI))
	if err != nil {
		return nil, fmt.Errorf("malformed marketplace descriptor: %w", err)
	}

	idnABI, err := abi.JSON(strings.NewReader(identityABI))
	if err != nil {
		return nil, fmt.Errorf("malformed identity descriptor: %w", err)
	}

	b := &bound{
		registry: bind.NewBoundContract(e.registry, regABI, e.ec, e.ec, e.ec),
		market:   bind.NewBoundContract(e.market, mktABI, e.ec, e.ec, e.ec),
		identity: bind.NewBoundContract(e.identity, idnABI, e.ec, e.ec, e.ec),
		timeout:  e.timeout,
	}

	if signer != nil {
		raw, err := signer.PrivateKey()
		if err != nil {
			return nil, fmt.Errorf("cannot obtain signing key: %w", err)
		}

		key, err := crypto.ToECDSA(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid signing key: %w", err)
		}

		if b.opts, err = bind.NewKeyedTransactorWithChainID(key, e.chainID); err != nil {
			return nil, fmt.Errorf("cannot build transactor: %w", err)
		}
	}

	return b, nil
}

// bound holds the contract handles of one Bind call.
type bound struct {
	registry *bind.BoundContract
	market   *bind.BoundContract
	identity *bind.BoundContract
	opts     *bind.TransactOpts // nil for read-only bindings
	timeout  time.Duration
}

// call performs a read call under the per-call timeout.
func (b *bound) call(ctx context.Context, c *bind.BoundContract, out *[]interface{}, method string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	err := c.Call(&bind.CallOpts{Context: ctx}, out, method, args...)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.ErrCallTimeout
	}

	return err
}

// reverted reports whether the node rejected the call at the contract level, which is how missing tokens and
// unimplemented methods surface on EVM chains.
func reverted(err error) bool {
	return err != nil && strings.Contains(err.Error(), "revert")
}

// OwnerOf returns the current owner of the token, in canonical lowercase form.
func (b *bound) OwnerOf(ctx context.Context, tokenID uint64) (string, error) {
	var out []interface{}

	err := b.call(ctx, b.registry, &out, "ownerOf", new(big.Int).SetUint64(tokenID))
	if err != nil {
		if reverted(err) {
			return "", types.ErrTokenMissing
		}
		if errors.Is(err, types.ErrCallTimeout) {
			return "", err
		}

		return "", fmt.Errorf("%w: %s", types.ErrRegistryUnavailable, err)
	}

	return util.NormAddr(out[0].(common.Address).Hex()), nil
}

// AssetDetails returns the descriptive record of the token.
func (b *bound) AssetDetails(ctx context.Context, tokenID uint64) (types.AssetRecord, error) {
	var out []interface{}

	err := b.call(ctx, b.registry, &out, "getAssetDetails", new(big.Int).SetUint64(tokenID))
	if err != nil {
		if reverted(err) {
			return types.AssetRecord{}, types.ErrTokenMissing
		}
		if errors.Is(err, types.ErrCallTimeout) {
			return types.AssetRecord{}, err
		}

		return types.AssetRecord{}, fmt.Errorf("%w: %s", types.ErrRegistryUnavailable, err)
	}

	return types.AssetRecord{
		TokenID:      tokenID,
		Name:         out[0].(string),
		Batch:        out[1].(string),
		MfgTime:      out[2].(*big.Int).Int64(),
		ExpTime:      out[3].(*big.Int).Int64(),
		Composition:  out[4].(string),
		Storage:      out[5].(string),
		DocHash:      out[6].(string),
		Manufacturer: util.NormAddr(out[7].(common.Address).Hex()),
		Owner:        util.NormAddr(out[8].(common.Address).Hex()),
	}, nil
}

// OwnershipHistory returns the full ownership history of the token. Older deployments do not implement the query,
// which surfaces as types.ErrHistoryUnavailable and triggers the caller's fallback path.
func (b *bound) OwnershipHistory(ctx context.Context, tokenID uint64) ([]types.HistoryEntry, error) {
	var out []interface{}

	err := b.call(ctx, b.registry, &out, "getOwnershipHistory", new(big.Int).SetUint64(tokenID))
	if err != nil {
		if reverted(err) {
			return nil, types.ErrHistoryUnavailable
		}
		if errors.Is(err, types.ErrCallTimeout) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %s", types.ErrRegistryUnavailable, err)
	}

	owners := out[0].([]common.Address)
	stamps := out[1].([]*big.Int)

	if len(owners) != len(stamps) {
		return nil, types.ErrHistoryUnavailable
	}

	hist := make([]types.HistoryEntry, len(owners))
	for i := range owners {
		hist[i] = types.HistoryEntry{Owner: util.NormAddr(owners[i].Hex()), TS: stamps[i].Int64()}
	}

	return hist, nil
}

// NextTokenID returns the upper bound of issued token identifiers. Deployments without a token counter report
// types.ErrNoTokenCounter, which callers treat as an empty registry, not an outage.
func (b *bound) NextTokenID(ctx context.Context) (uint64, error) {
	var out []interface{}

	err := b.call(ctx, b.registry, &out, "nextTokenId")
	if err != nil {
		if reverted(err) {
			return 0, types.ErrNoTokenCounter
		}
		if errors.Is(err, types.ErrCallTimeout) {
			return 0, err
		}

		return 0, fmt.Errorf("%w: %s", types.ErrRegistryUnavailable, err)
	}

	return out[0].(*big.Int).Uint64(), nil
}

// transact submits a state-changing call under the per-call timeout.
func (b *bound) transact(ctx context.Context, c *bind.BoundContract, method string, args ...interface{}) (string, error) {
	if b.opts == nil {
		return "", ErrReadOnly
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	opts := *b.opts
	opts.Context = ctx

	tx, err := c.Transact(&opts, method, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", types.ErrCallTimeout
		}

		return "", fmt.Errorf("%w: %s", types.ErrRegistryUnavailable, err)
	}

	return tx.Hash().Hex(), nil
}

// Transfer hands the token over to account to.
func (b *bound) Transfer(ctx context.Context, to string, tokenID uint64) (string, error) {
	return b.transact(ctx, b.registry, "transferAsset", common.HexToAddress(to), new(big.Int).SetUint64(tokenID))
}

// List puts the token up for sale at price.
func (b *bound) List(ctx context.Context, tokenID uint64, price *big.Int) (string, error) {
	return b.transact(ctx, b.market, "listAsset", new(big.Int).SetUint64(tokenID), price)
}

// Listing returns the marketplace listing of the token.
func (b *bound) Listing(ctx context.Context, tokenID uint64) (types.Listing, error) {
	var out []interface{}

	err := b.call(ctx, b.market, &out, "getListing", new(big.Int).SetUint64(tokenID))
	if err != nil {
		if reverted(err) {
			return types.Listing{}, types.ErrTokenMissing
		}
		if errors.Is(err, types.ErrCallTimeout) {
			return types.Listing{}, err
		}

		return types.Listing{}, fmt.Errorf("%w: %s", types.ErrRegistryUnavailable, err)
	}

	return types.Listing{
		Seller: util.NormAddr(out[0].(common.Address).Hex()),
		Price:  out[1].(*big.Int).String(),
		Active: out[2].(bool),
	}, nil
}

// Role returns the identity-registry role of the account.
func (b *bound) Role(ctx context.Context, account string) (types.Role, error) {
	var out []interface{}

	err := b.call(ctx, b.identity, &out, "getRole", common.HexToAddress(account))
	if err != nil {
		if reverted(err) {
			return types.RoleNone, nil // unregistered accounts have no role
		}
		if errors.Is(err, types.ErrCallTimeout) {
			return types.RoleNone, err
		}

		return types.RoleNone, fmt.Errorf("%w: %s", types.ErrRegistryUnavailable, err)
	}

	return types.Role(out[0].(uint8)), nil
}
