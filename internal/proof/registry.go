package proof

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

const (
	RoundPresale = "presale"
	RoundClaimV2 = "claim-v2"
)

// AirdropRound is the dataset id of the n-th (0-based) airdrop round.
func AirdropRound(n uint64) string {
	return fmt.Sprintf("airdrop-%d", n)
}

// Registry holds one independent Index per round. It is built once at startup.
type Registry struct {
	indexes map[string]*Index
}

func NewRegistry(indexes map[string]*Index) *Registry {
	r := &Registry{indexes: make(map[string]*Index, len(indexes))}
	for round, idx := range indexes {
		r.indexes[round] = idx
	}
	return r
}

// LoadRegistry reads every round dataset from dir. A missing file yields an empty index
// for that round, so every lookup in it is "not whitelisted".
func LoadRegistry(dir string, files map[string]string) (*Registry, error) {
	indexes := make(map[string]*Index, len(files))
	for round, file := range files {
		path := filepath.Join(dir, file)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warnf("Whitelist dataset %s not found at %s, round has no entries", round, path)
			indexes[round] = BuildIndex(nil)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open whitelist %s: %w", round, err)
		}
		idx, err := ReadIndex(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("load whitelist %s: %w", round, err)
		}
		log.WithFields(log.Fields{"round": round, "entries": idx.Len()}).Info("Whitelist dataset loaded")
		indexes[round] = idx
	}
	return NewRegistry(indexes), nil
}

// Lookup selects the round's index and looks addr up in it. Unknown rounds behave like
// empty datasets.
func (r *Registry) Lookup(addr string, round string) Proof {
	if r == nil {
		return Proof{}
	}
	return r.indexes[round].Lookup(addr)
}

func (r *Registry) Index(round string) *Index {
	if r == nil {
		return nil
	}
	return r.indexes[round]
}

func (r *Registry) Rounds() []string {
	if r == nil {
		return nil
	}
	rounds := make([]string, 0, len(r.indexes))
	for round := range r.indexes {
		rounds = append(rounds, round)
	}
	sort.Strings(rounds)
	return rounds
}

// VerifyAgainstRoot counts the entries of a round whose proof does not verify against root.
func (r *Registry) VerifyAgainstRoot(round string, root common.Hash) (checked, mismatched int) {
	idx := r.Index(round)
	if idx == nil {
		return 0, 0
	}
	for key, p := range idx.proofs {
		checked++
		if !VerifyProof(root, common.HexToAddress(key), p) {
			mismatched++
		}
	}
	return checked, mismatched
}
