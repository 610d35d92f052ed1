// README: In-process availability pool guarded by one mutex.
package availability

import (
	"context"
	"sort"
	"sync"

	"ridehail/internal/types"
)

type MemoryPool struct {
	mu      sync.Mutex
	online  map[types.ID]struct{}
	idle    map[types.ID]struct{}
	engaged map[types.ID]struct{}
}

func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		online:  make(map[types.ID]struct{}),
		idle:    make(map[types.ID]struct{}),
		engaged: make(map[types.ID]struct{}),
	}
}

func (p *MemoryPool) Candidates(_ context.Context) ([]types.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]types.ID, 0, len(p.idle))
	for id := range p.idle {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (p *MemoryPool) Reserve(_ context.Context, id types.ID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.idle[id]; !ok {
		return false, nil
	}
	delete(p.idle, id)
	p.engaged[id] = struct{}{}
	return true, nil
}

func (p *MemoryPool) Release(_ context.Context, id types.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.engaged, id)
	if _, ok := p.online[id]; ok {
		p.idle[id] = struct{}{}
	}
	return nil
}

func (p *MemoryPool) Join(_ context.Context, id types.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[id] = struct{}{}
	if _, ok := p.engaged[id]; !ok {
		p.idle[id] = struct{}{}
	}
	return nil
}

func (p *MemoryPool) Leave(_ context.Context, id types.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, id)
	delete(p.idle, id)
	return nil
}

func (p *MemoryPool) Engage(_ context.Context, id types.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.idle, id)
	p.engaged[id] = struct{}{}
	return nil
}
