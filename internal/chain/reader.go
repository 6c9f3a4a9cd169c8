package chain

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/memecoin2016/meme-desk/internal/metrics"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Reader is the process-wide read-through cache in front of contract view calls. Entries
// are only ever filled by a fetch and removed by invalidation, never written speculatively.
type Reader struct {
	caller  ethereum.ContractCaller
	clock   clockwork.Clock
	ttl     time.Duration
	timeout time.Duration

	mu          sync.Mutex
	entries     map[Key]*entry
	keyGen      map[Key]uint64
	contractGen map[common.Address]uint64

	group singleflight.Group
}

type entry struct {
	values    Values
	fetchedAt time.Time
}

type generation struct {
	key      uint64
	contract uint64
}

func NewReader(caller ethereum.ContractCaller, clock clockwork.Clock, ttl, timeout time.Duration) *Reader {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Reader{
		caller:      caller,
		clock:       clock,
		ttl:         ttl,
		timeout:     timeout,
		entries:     make(map[Key]*entry),
		keyGen:      make(map[Key]uint64),
		contractGen: make(map[common.Address]uint64),
	}
}

func (r *Reader) generationOf(key Key) generation {
	return generation{key: r.keyGen[key], contract: r.contractGen[key.Contract]}
}

// Read returns the unpacked outputs of c.method(args...). Errors are never cached, so a
// failed read stays unknown until the next attempt.
func (r *Reader) Read(ctx context.Context, c Contract, method string, args ...interface{}) (Values, error) {
	key := c.Key(method, args...)

	r.mu.Lock()
	if e, ok := r.entries[key]; ok && r.clock.Since(e.fetchedAt) < r.ttl {
		r.mu.Unlock()
		metrics.ChainReadsTotal.WithLabelValues(method, "hit").Inc()
		return e.values, nil
	}
	gen := r.generationOf(key)
	r.mu.Unlock()

	flightKey := key.String() + "#" + strconv.FormatUint(gen.key, 10) + "." + strconv.FormatUint(gen.contract, 10)
	v, err, _ := r.group.Do(flightKey, func() (interface{}, error) {
		return r.fetch(ctx, c, method, args, key, gen)
	})
	if err != nil {
		metrics.ChainReadsTotal.WithLabelValues(method, "error").Inc()
		return nil, err
	}
	metrics.ChainReadsTotal.WithLabelValues(method, "miss").Inc()
	return v.(Values), nil
}

func (r *Reader) fetch(ctx context.Context, c Contract, method string, args []interface{}, key Key, gen generation) (Values, error) {
	m, ok := c.ABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %s not found in abi", method)
	}
	input, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	// joined callers must not fail because the first caller went away
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	start := time.Now()
	to := c.Address
	output, err := r.caller.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: input}, nil)
	metrics.ChainReadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.WithFields(log.Fields{"key": key.String()}).Debugf("Contract read failed: %v", err)
		return nil, fmt.Errorf("call %s: %w", key, err)
	}
	unpacked, err := m.Outputs.Unpack(output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", key, err)
	}
	values := Values(unpacked)

	r.mu.Lock()
	// an invalidation during the call means this result may predate the change
	if r.generationOf(key) == gen {
		r.entries[key] = &entry{values: values, fetchedAt: r.clock.Now()}
	}
	r.mu.Unlock()

	return values, nil
}

// Invalidate drops the given keys so the next Read refetches them.
func (r *Reader) Invalidate(keys ...Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.entries, k)
		r.keyGen[k]++
		log.Debugf("Invalidate read %s", k)
	}
	metrics.CacheInvalidationsTotal.Add(float64(len(keys)))
}

// InvalidateContract drops every cached read of one contract.
func (r *Reader) InvalidateContract(addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.entries {
		if k.Contract == addr {
			delete(r.entries, k)
			n++
		}
	}
	r.contractGen[addr]++
	metrics.CacheInvalidationsTotal.Add(float64(n))
	log.Debugf("Invalidate %d reads of contract %s", n, addr.Hex())
}

// Cached reports whether key currently has a fresh entry.
func (r *Reader) Cached(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return ok && r.clock.Since(e.fetchedAt) < r.ttl
}

func (r *Reader) ReadBool(ctx context.Context, c Contract, method string, args ...interface{}) (bool, error) {
	vs, err := r.Read(ctx, c, method, args...)
	if err != nil {
		return false, err
	}
	return vs.Bool(0)
}

func (r *Reader) ReadBigInt(ctx context.Context, c Contract, method string, args ...interface{}) (*big.Int, error) {
	vs, err := r.Read(ctx, c, method, args...)
	if err != nil {
		return nil, err
	}
	return vs.BigInt(0)
}

func (r *Reader) ReadUint64(ctx context.Context, c Contract, method string, args ...interface{}) (uint64, error) {
	vs, err := r.Read(ctx, c, method, args...)
	if err != nil {
		return 0, err
	}
	return vs.Uint64(0)
}
