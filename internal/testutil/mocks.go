// Package testutil holds shared fakes for federation tests.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"shard-federator/internal/shard"
)

// MockHandle is a handle that remembers whether and how often it was closed
type MockHandle struct {
	Identity string
	closes   int32
	owner    *MockProvider

	// CloseError is returned by Close when set
	CloseError error
}

// Close implements shard.Handle
func (h *MockHandle) Close() error {
	if atomic.AddInt32(&h.closes, 1) == 1 && h.owner != nil {
		atomic.AddInt32(&h.owner.live, -1)
	}
	return h.CloseError
}

// Closes returns how many times Close was called
func (h *MockHandle) Closes() int {
	return int(atomic.LoadInt32(&h.closes))
}

// IsClosed reports whether Close was called at least once
func (h *MockHandle) IsClosed() bool {
	return h.Closes() > 0
}

// MockProvider implements shard.HandleProvider and tracks every handle it opened
type MockProvider struct {
	Identity string

	mu      sync.Mutex
	handles []*MockHandle
	opens   int32
	live    int32

	// OpenError is returned by Open when set
	OpenError error
}

// NewMockProvider creates a provider for identity
func NewMockProvider(identity string) *MockProvider {
	return &MockProvider{Identity: identity}
}

// Open implements shard.HandleProvider
func (p *MockProvider) Open(ctx context.Context) (shard.Handle, error) {
	atomic.AddInt32(&p.opens, 1)
	if p.OpenError != nil {
		return nil, p.OpenError
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := &MockHandle{Identity: p.Identity, owner: p}
	atomic.AddInt32(&p.live, 1)

	p.mu.Lock()
	p.handles = append(p.handles, h)
	p.mu.Unlock()

	return h, nil
}

// Opens returns how many times Open was called
func (p *MockProvider) Opens() int {
	return int(atomic.LoadInt32(&p.opens))
}

// Live returns the number of opened handles not yet closed
func (p *MockProvider) Live() int {
	return int(atomic.LoadInt32(&p.live))
}

// Handles returns every handle opened so far
func (p *MockProvider) Handles() []*MockHandle {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*MockHandle, len(p.handles))
	copy(out, p.handles)
	return out
}

// AllClosedOnce reports whether every opened handle was closed exactly once
func (p *MockProvider) AllClosedOnce() bool {
	for _, h := range p.Handles() {
		if h.Closes() != 1 {
			return false
		}
	}
	return true
}

// TestifyProvider is a testify mock for expectations on Open
type TestifyProvider struct {
	mock.Mock
}

// Open implements shard.HandleProvider
func (m *TestifyProvider) Open(ctx context.Context) (shard.Handle, error) {
	args := m.Called(ctx)
	if h := args.Get(0); h != nil {
		return h.(shard.Handle), args.Error(1)
	}
	return nil, args.Error(1)
}
