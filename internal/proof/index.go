package proof

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// Proof is an ordered Merkle sibling path. An empty proof means "not whitelisted".
type Proof []common.Hash

// Bytes32 converts the proof to the bytes32[] argument form contracts take.
func (p Proof) Bytes32() [][32]byte {
	out := make([][32]byte, len(p))
	for i, h := range p {
		out[i] = h
	}
	return out
}

// WhitelistEntry is a single record of a static whitelist dataset.
type WhitelistEntry struct {
	Address string        `json:"address"`
	Proof   []common.Hash `json:"proof"`
}

// Index maps a lowercased address to its proof. It is never mutated after BuildIndex.
type Index struct {
	proofs map[string]Proof
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// BuildIndex indexes entries by lowercased address. Entries whose address is not a hex
// address are skipped, and for duplicates the first entry wins.
func BuildIndex(entries []WhitelistEntry) *Index {
	idx := &Index{proofs: make(map[string]Proof, len(entries))}
	for _, e := range entries {
		if !common.IsHexAddress(e.Address) || !strings.HasPrefix(strings.TrimSpace(e.Address), "0x") {
			log.Warnf("Skip whitelist entry with malformed address: %q", e.Address)
			continue
		}
		key := normalize(e.Address)
		if _, ok := idx.proofs[key]; ok {
			log.Warnf("Skip duplicate whitelist entry: %s", key)
			continue
		}
		idx.proofs[key] = Proof(e.Proof)
	}
	return idx
}

// ReadIndex decodes a JSON array of WhitelistEntry and indexes it.
func ReadIndex(r io.Reader) (*Index, error) {
	var entries []WhitelistEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode whitelist: %w", err)
	}
	return BuildIndex(entries), nil
}

// Lookup returns the proof for addr, or an empty proof when addr is unknown.
func (idx *Index) Lookup(addr string) Proof {
	if idx == nil {
		return Proof{}
	}
	p, ok := idx.proofs[normalize(addr)]
	if !ok {
		return Proof{}
	}
	return p
}

func (idx *Index) LookupAddress(addr common.Address) Proof {
	return idx.Lookup(addr.Hex())
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.proofs)
}

// Addresses lists indexed addresses in no particular order.
func (idx *Index) Addresses() []common.Address {
	if idx == nil {
		return nil
	}
	out := make([]common.Address, 0, len(idx.proofs))
	for k := range idx.proofs {
		out = append(out, common.HexToAddress(k))
	}
	return out
}
