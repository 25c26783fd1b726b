package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/taskrouter/internal/model"
)

type failingStore struct {
	*MemoryStore
	getErr    error
	recordErr error
}

func (f *failingStore) Get(ctx context.Context, backendID string) (*model.BenchmarkEntry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryStore.Get(ctx, backendID)
}

func (f *failingStore) Record(ctx context.Context, o model.OutcomeRecord) (*model.BenchmarkEntry, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	return f.MemoryStore.Record(ctx, o)
}

func TestResilientGetDegradesToDefaults(t *testing.T) {
	t.Parallel()

	inner := &failingStore{MemoryStore: NewMemory(), getErr: errors.New("connection refused")}
	s := NewResilient(inner)

	e, err := s.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.InDelta(t, model.DefaultReliabilityScore, e.Reliability(), 1e-9)
}

func TestResilientPassThrough(t *testing.T) {
	t.Parallel()

	s := NewResilient(NewMemory())
	ctx := context.Background()

	_, err := s.Record(ctx, outcome("b1", 8, true))
	require.NoError(t, err)

	e, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, int64(1), e.TotalTasks)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestResilientRecordSurfacesErrors(t *testing.T) {
	t.Parallel()

	inner := &failingStore{MemoryStore: NewMemory(), recordErr: errors.New("disk full")}
	s := NewResilient(inner)

	_, err := s.Record(context.Background(), outcome("b1", 8, true))
	assert.Error(t, err)
}

func TestReliabilityReader(t *testing.T) {
	t.Parallel()

	mem := NewMemory()
	r := ReliabilityReader{Store: mem}
	ctx := context.Background()

	// Cold start.
	assert.InDelta(t, model.DefaultReliabilityScore, r.Reliability(ctx, "unseen"), 1e-9)

	e, err := mem.Record(ctx, outcome("b1", 10, true))
	require.NoError(t, err)
	assert.InDelta(t, e.ReliabilityScore, r.Reliability(ctx, "b1"), 1e-9)

	failing := &failingStore{MemoryStore: NewMemory(), getErr: errors.New("boom")}
	r2 := ReliabilityReader{Store: failing}
	assert.InDelta(t, model.DefaultReliabilityScore, r2.Reliability(ctx, "b1"), 1e-9)
}
