package web

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// memStore is an in-memory ObjectStore with hooks for failure injection.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	gets    map[string]int

	listErr   error
	getErr    map[string]error
	deleteErr map[string]error
	getDelay  time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

var _ ObjectStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		objects:   map[string][]byte{},
		types:     map[string]string{},
		gets:      map[string]int{},
		getErr:    map[string]error{},
		deleteErr: map[string]error{},
	}
}

func (m *memStore) put(key, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = []byte(body)
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memStore) getCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets[key]
}

func (m *memStore) List(_ context.Context) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]ObjectInfo, 0, len(m.objects))
	for k, v := range m.objects {
		out = append(out, ObjectInfo{Key: k, Size: int64(len(v))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.getDelay > 0 {
		select {
		case <-time.After(m.getDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets[key]++
	if err := m.getErr[key]; err != nil {
		return nil, err
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *memStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[key]; err != nil {
		return err
	}
	delete(m.objects, key)
	return nil
}

type fakeSigner struct {
	err error
}

func (f fakeSigner) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("https://signed.example/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

type fakeThumbnailer struct {
	err   error
	calls atomic.Int32
}

func (f *fakeThumbnailer) Generate(_ context.Context, video []byte) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png:" + string(video)), nil
}

// memCache is a ShortsCache that counts its calls.
type memCache struct {
	mu          sync.Mutex
	res         *Result
	sets        int
	invalidated int
}

func (c *memCache) Get(_ context.Context) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.res == nil {
		return nil, false
	}
	cp := *c.res
	return &cp, true
}

func (c *memCache) Set(_ context.Context, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.res = &res
	c.sets++
}

func (c *memCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.res = nil
	c.invalidated++
}

type fakeQueue struct {
	err  error
	jobs []SaveJob
}

func (q *fakeQueue) Enqueue(_ context.Context, job SaveJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

var errBoom = errors.New("boom")
