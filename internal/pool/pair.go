package pool

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PairKey identifies a pool by its two assets in canonical order
// (AssetA < AssetB by address bytes), so (A,B) and (B,A) resolve to the
// same pool.
type PairKey struct {
	AssetA common.Address
	AssetB common.Address
}

// NewPairKey canonicalizes two asset addresses into a PairKey.
func NewPairKey(x, y common.Address) (PairKey, error) {
	if x == y {
		return PairKey{}, fmt.Errorf("%w: %s", ErrIdenticalAssets, x)
	}
	if bytes.Compare(x.Bytes(), y.Bytes()) > 0 {
		x, y = y, x
	}
	return PairKey{AssetA: x, AssetB: y}, nil
}

// Contains reports whether asset is one of the pair.
func (k PairKey) Contains(asset common.Address) bool {
	return asset == k.AssetA || asset == k.AssetB
}

// Other returns the pair's counterpart of asset.
func (k PairKey) Other(asset common.Address) common.Address {
	if asset == k.AssetA {
		return k.AssetB
	}
	return k.AssetA
}

// Address derives the pool's own vault account from the canonical pair.
func (k PairKey) Address() common.Address {
	hash := crypto.Keccak256(k.AssetA.Bytes(), k.AssetB.Bytes())
	return common.BytesToAddress(hash[12:])
}

func (k PairKey) String() string {
	return k.AssetA.Hex() + "/" + k.AssetB.Hex()
}
