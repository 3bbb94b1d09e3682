package firewall

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory intercept ledger for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	lists   map[ListKind]map[string]struct{}
	seq     uint64 // insertion counter, breaks timestamp ties in ListRecent
}

type memoryRecord struct {
	record *Record
	seq    uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*memoryRecord),
		lists: map[ListKind]map[string]struct{}{
			ListBlacklist: {},
			ListWhitelist: {},
		},
	}
}

func (m *MemoryStore) Put(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneRecord(record)
	if existing, ok := m.records[record.RequestID]; ok {
		// Upsert keeps the original insertion position.
		existing.record = cp
		return nil
	}
	m.seq++
	m.records[record.RequestID] = &memoryRecord{record: cp, seq: m.seq}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, requestID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mr, ok := m.records[requestID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(mr.record), nil
}

func (m *MemoryStore) ListRecent(_ context.Context, limit int, opts ...ListOption) ([]*Record, error) {
	o := applyListOpts(opts)

	m.mu.RLock()
	all := make([]*memoryRecord, 0, len(m.records))
	for _, mr := range m.records {
		all = append(all, mr)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		ti, tj := all[i].record.Timestamp, all[j].record.Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return all[i].seq > all[j].seq
	})

	result := make([]*Record, 0, limit)
	for _, mr := range all {
		if o.cursor != nil {
			// Skip everything at or after the cursor position.
			if mr.record.Timestamp.After(o.cursor.CreatedAt) {
				continue
			}
			if mr.record.Timestamp.Equal(o.cursor.CreatedAt) && mr.record.RequestID >= o.cursor.ID {
				continue
			}
		}
		result = append(result, cloneRecord(mr.record))
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) AddAddress(_ context.Context, kind ListKind, address string) error {
	if !ValidListKind(kind) {
		return ErrInvalidListKind
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[kind][address] = struct{}{}
	return nil
}

func (m *MemoryStore) RemoveAddress(_ context.Context, kind ListKind, address string) error {
	if !ValidListKind(kind) {
		return ErrInvalidListKind
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lists[kind], address)
	return nil
}

func (m *MemoryStore) ListAddresses(_ context.Context, kind ListKind) ([]string, error) {
	if !ValidListKind(kind) {
		return nil, ErrInvalidListKind
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]string, 0, len(m.lists[kind]))
	for addr := range m.lists[kind] {
		members = append(members, addr)
	}
	sort.Strings(members)
	return members, nil
}

func (m *MemoryStore) Membership(_ context.Context, address string) (Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, black := m.lists[ListBlacklist][address]
	_, white := m.lists[ListWhitelist][address]
	return Membership{Blacklisted: black, Whitelisted: white}, nil
}

func cloneRecord(r *Record) *Record {
	cp := *r
	if r.ReasonCodes != nil {
		cp.ReasonCodes = make([]string, len(r.ReasonCodes))
		copy(cp.ReasonCodes, r.ReasonCodes)
	}
	return &cp
}
