package embedding

import (
	"context"
	"testing"
	"time"
)

// fakeStore is a map-backed consumer store; errFn fields inject failures.
type fakeStore struct {
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}

	putCalls   int
	multiCalls int

	putErr   error
	multiErr error
	smemErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes: map[string]map[string]string{},
		sets:   map[string]map[string]struct{}{},
	}
}

func (f *fakeStore) PutIndexed(
	_ context.Context, key string, fields map[string]string, index, member string,
) error {
	f.putCalls++
	if f.putErr != nil {
		return f.putErr
	}
	h := f.hashes[key]
	if h == nil {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	set := f.sets[index]
	if set == nil {
		set = map[string]struct{}{}
		f.sets[index] = set
	}
	set[member] = struct{}{}
	return nil
}

func (f *fakeStore) DeleteIndexed(_ context.Context, keys []string, index, member string) (int, error) {
	n := 0
	for _, k := range keys {
		if _, ok := f.hashes[k]; ok {
			delete(f.hashes, k)
			n++
		}
	}
	delete(f.sets[index], member)
	return n, nil
}

func (f *fakeStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	f.multiCalls++
	if f.multiErr != nil {
		return nil, f.multiErr
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i], _ = f.HGetAll(ctx, k)
	}
	return out, nil
}

func (f *fakeStore) SMembers(_ context.Context, key string) ([]string, error) {
	if f.smemErr != nil {
		return nil, f.smemErr
	}
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	return out, nil
}

func newTestRepo(t *testing.T) (*Repo, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	r := New(fs)
	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return r, fs
}
