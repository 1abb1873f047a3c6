package repofake

import (
	"sync"

	"github.com/kinnstay/booking-workflow/storage"
)

var _ storage.Repo = (*FakeRepo)(nil)

type FakeRepo struct {
	entries map[string][]byte
	lock    sync.RWMutex

	// FailSet, when set, is returned by Set calls. FailSetKey narrows
	// the failure to a single key; empty means every key fails.
	FailSet    error
	FailSetKey string
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{entries: make(map[string][]byte)}
}

func (fr *FakeRepo) Set(key string, value []byte) error {
	if fr.FailSet != nil && (fr.FailSetKey == "" || fr.FailSetKey == key) {
		return fr.FailSet
	}
	fr.lock.Lock()
	defer fr.lock.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	fr.entries[key] = cp
	return nil
}

func (fr *FakeRepo) Get(key string) ([]byte, error) {
	fr.lock.RLock()
	defer fr.lock.RUnlock()

	value, ok := fr.entries[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

func (fr *FakeRepo) Delete(key string) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	delete(fr.entries, key)
	return nil
}

// Len reports how many entries are currently stored.
func (fr *FakeRepo) Len() int {
	fr.lock.RLock()
	defer fr.lock.RUnlock()
	return len(fr.entries)
}
