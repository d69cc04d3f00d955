package xquery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"gopkg.in/src-d/go-xquery.v0/query"
)

func TestProcessList(t *testing.T) {
	require := require.New(t)
	p := NewProcessList()

	id := uuid.New()
	ctx := query.NewContext(context.Background(), query.WithQueryID(id))
	reads := &query.LockResult{Read: []string{"a"}}
	ctx, err := p.AddProcess(ctx, reads, false)
	require.NoError(err)
	require.Equal(id, ctx.ID())
	require.Len(p.procs, 1)

	_, err = p.AddProcess(ctx, reads, false)
	require.Error(err)
	require.True(ErrQueryAlreadyRunning.Is(err))

	writes := &query.LockResult{Write: []string{"a"}}
	require.Equal([]uuid.UUID{id}, p.Conflicts(writes))
	require.Len(p.Conflicts(&query.LockResult{Read: []string{"a", "b"}}), 0)

	other := query.NewContext(context.Background())
	_, err = p.AddProcess(other, writes, true)
	require.Error(err)
	require.True(ErrLockConflict.Is(err))

	other, err = p.AddProcess(other, writes, false)
	require.NoError(err)

	procs := p.Processes()
	require.Len(procs, 2)
	require.Equal(id, procs[0].ID)
	require.Equal(writes, procs[1].Locks)
	require.True(procs[0].Seconds() >= 0)

	p.Done(id)
	require.Len(p.procs, 1)
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		require.FailNow("process context not cancelled")
	}

	require.True(p.Kill(other.ID()))
	require.False(p.Kill(other.ID()))
	require.Error(other.Err())
	require.Len(p.procs, 0)

	p.Done(id)
	require.Len(p.Processes(), 0)
}

func TestTrackedIter(t *testing.T) {
	testCases := []struct {
		name  string
		iter  func() query.Iter
		close bool
	}{
		{"exhausted", func() query.Iter { return query.ValueIter(query.NewIntSeq(1, 2)) }, false},
		{"closed", func() query.Iter { return query.ValueIter(query.NewIntSeq(1, 2)) }, true},
		{"failed", func() query.Iter {
			return query.IterError(query.ErrDivisionByZero.New(info, "1 div 0"))
		}, false},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			var calls int
			iter := &trackedIter{Iter: tt.iter(), notify: func() { calls++ }}

			if tt.close {
				_, err := iter.Next()
				require.NoError(err)
				require.Equal(0, calls)
				require.NoError(iter.Close())
			} else {
				_, _ = query.Collect(iter)
			}
			require.Equal(1, calls)

			require.NoError(iter.Close())
			require.Equal(1, calls)
		})
	}
}

func TestTrackedIterCanceled(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	iter := &trackedIter{Iter: query.ValueIter(query.NewIntSeq(1, 2, 3)), ctx: ctx, notify: func() { calls++ }}

	it, err := iter.Next()
	require.NoError(err)
	require.Equal(query.Int(1), it)

	cancel()
	_, err = iter.Next()
	require.Equal(context.Canceled, err)
	require.Equal(1, calls)
	require.NoError(iter.Close())
	require.Equal(1, calls)
}
