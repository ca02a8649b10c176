package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is the in-process ledger backend.
type MemoryStore struct {
	mu       sync.Mutex
	sets     map[string]map[string]struct{}
	watchers map[string][]chan string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sets:     make(map[string]map[string]struct{}),
		watchers: make(map[string][]chan string),
	}
}

func (s *MemoryStore) For(voterID string) *MemoryLedger {
	return &MemoryLedger{store: s, voter: voterID}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

type MemoryLedger struct {
	store *MemoryStore
	voter string
}

func (l *MemoryLedger) Has(ctx context.Context, ideaID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	_, ok := l.store.sets[l.voter][ideaID]
	return ok, nil
}

func (l *MemoryLedger) Add(ctx context.Context, ideaID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	set := l.store.sets[l.voter]
	if set == nil {
		set = make(map[string]struct{})
		l.store.sets[l.voter] = set
	}
	if _, ok := set[ideaID]; ok {
		return nil
	}
	set[ideaID] = struct{}{}
	for _, ch := range l.store.watchers[l.voter] {
		// slow watchers miss notifications rather than block voting
		select {
		case ch <- ideaID:
		default:
		}
	}
	return nil
}

func (l *MemoryLedger) Members(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	ids := make([]string, 0, len(l.store.sets[l.voter]))
	for id := range l.store.sets[l.voter] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *MemoryLedger) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)
	l.store.mu.Lock()
	l.store.watchers[l.voter] = append(l.store.watchers[l.voter], ch)
	l.store.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.store.mu.Lock()
		defer l.store.mu.Unlock()
		watchers := l.store.watchers[l.voter]
		for i, w := range watchers {
			if w == ch {
				l.store.watchers[l.voter] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}
