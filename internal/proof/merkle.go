package proof

import (
	"bytes"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LeafHash is the standard-merkle-tree leaf for a single address value:
// keccak256(keccak256(abi.encode(address))).
func LeafHash(addr common.Address) common.Hash {
	inner := crypto.Keccak256(common.LeftPadBytes(addr.Bytes(), 32))
	return crypto.Keccak256Hash(inner)
}

// ComputeParentNode hashes a sibling pair in sorted order, so a proof does not need to
// carry left/right flags.
func ComputeParentNode(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// ComputeRoot folds leaves pairwise level by level; an odd node is carried up unchanged.
func ComputeRoot(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	root, _ := ComputeRootAndProofs(leaves)
	return root
}

// ComputeRootAndProofs returns the root and the sibling path of every leaf.
func ComputeRootAndProofs(leaves []common.Hash) (common.Hash, [][]common.Hash) {
	if len(leaves) == 0 {
		return common.Hash{}, nil
	}

	proofs := make([][]common.Hash, len(leaves))
	// positions[i] is the index of leaf i's ancestor in the current level
	positions := make([]int, len(leaves))
	for i := range positions {
		positions[i] = i
	}

	level := slices.Clone(leaves)
	for len(level) > 1 {
		parents := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				parents = append(parents, level[i])
				continue
			}
			parents = append(parents, ComputeParentNode(level[i], level[i+1]))
		}

		for leaf, pos := range positions {
			sibling := pos ^ 1
			if sibling < len(level) {
				proofs[leaf] = append(proofs[leaf], level[sibling])
			}
			positions[leaf] = pos / 2
		}
		level = parents
	}

	return level[0], proofs
}

// VerifyProof checks that address is committed under root. The contract is the
// authority on membership; this is a consistency check for locally shipped datasets.
func VerifyProof(root common.Hash, addr common.Address, path []common.Hash) bool {
	current := LeafHash(addr)
	for _, sibling := range path {
		current = ComputeParentNode(current, sibling)
	}
	return current == root
}
