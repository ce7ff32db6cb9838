package health

import (
	"context"
	"errors"
	"testing"
)

type mockStorePinger struct {
	err error
}

func (m *mockStorePinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

func TestCheck_AllHealthy(t *testing.T) {
	r := New(&mockStorePinger{}, &mockEmbeddingChecker{}).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("status = %q, want %q", r.Status, Healthy)
	}
	if r.Checks["store"] != CheckOK || r.Checks["embedding"] != CheckOK {
		t.Errorf("checks = %v", r.Checks)
	}
}

func TestCheck_StoreError(t *testing.T) {
	r := New(&mockStorePinger{err: errors.New("db closed")}, &mockEmbeddingChecker{}).
		Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("status = %q, want %q", r.Status, Degraded)
	}
	if r.Checks["store"] != CheckError {
		t.Errorf("store check = %q, want %q", r.Checks["store"], CheckError)
	}
	if r.Checks["embedding"] != CheckOK {
		t.Errorf("embedding check = %q, want %q", r.Checks["embedding"], CheckOK)
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	r := New(&mockStorePinger{}, &mockEmbeddingChecker{err: errors.New("timeout")}).
		Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("status = %q, want %q", r.Status, Degraded)
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("embedding check = %q, want %q", r.Checks["embedding"], CheckError)
	}
}

func TestCheck_NoEmbeddingChecker(t *testing.T) {
	r := New(&mockStorePinger{}, nil).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("status = %q, want %q", r.Status, Healthy)
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when no checker is configured")
	}
}
