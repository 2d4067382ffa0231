package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeClient is an in-memory catalog used where a sequence of calls has to
// observe its own writes.
type fakeClient struct {
	mu          sync.Mutex
	collections []Collection
	items       []Item
	next        int
	failNotes   map[string]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{failNotes: map[string]bool{}}
}

func (f *fakeClient) key() string {
	f.next++
	return fmt.Sprintf("K%07d", f.next)
}

func (f *fakeClient) Collections(ctx context.Context) ([]Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Collection(nil), f.collections...), nil
}

func (f *fakeClient) CreateCollection(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key()
	f.collections = append(f.collections, Collection{Key: k, Name: name})
	return k, nil
}

func (f *fakeClient) CollectionItems(ctx context.Context, collectionKey, itemType string) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Item
	for _, it := range f.items {
		if it.Data.ItemType != itemType {
			continue
		}
		for _, c := range it.Data.Collections {
			if c == collectionKey {
				out = append(out, it)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeClient) Item(ctx context.Context, key string) (Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.Key == key {
			return it, nil
		}
	}
	return Item{}, errors.New("not found")
}

func (f *fakeClient) CreateItem(ctx context.Context, data ItemData) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data.ItemType == ItemTypeNote && f.failNotes[data.Note] {
		return "", errors.New("413 request entity too large")
	}
	k := f.key()
	data.Key = k
	f.items = append(f.items, Item{Key: k, Version: 1, Data: data})
	return k, nil
}

func (f *fakeClient) count(itemType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if it.Data.ItemType == itemType {
			n++
		}
	}
	return n
}
