package escrow

import (
	"strconv"
	"sync"

	core "github.com/lancechain/ledger/internal/app/core/service"
)

// entryGuard rejects re-entry into fund-moving operations. A key is held
// for the duration of a call; a second call against the same key fails
// instead of blocking, so a reentrant invocation surfaces as an error
// rather than a deadlock.
type entryGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newEntryGuard() *entryGuard {
	return &entryGuard{inFlight: make(map[string]struct{})}
}

func (g *entryGuard) acquire(kind string, id int64) (func(), error) {
	key := kind + ":" + strconv.FormatInt(id, 10)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[key]; busy {
		return nil, core.NewStateError(kind, strconv.FormatInt(id, 10), "busy",
			"a fund-moving operation is already in progress")
	}
	g.inFlight[key] = struct{}{}
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.inFlight, key)
	}, nil
}
