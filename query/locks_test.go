package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockVisitor(t *testing.T) {
	require := require.New(t)

	v := NewLockVisitor(false)
	require.True(v.Lock("b"))
	require.True(v.Lock("a"))
	require.True(v.Lock(ContextResource))
	require.True(v.Lock("a"))
	require.Equal([]string{".", "a", "b"}, v.Locks())
	require.False(v.All())

	require.False(v.Lock(""))
	require.True(v.All())
}

func TestLockVisitorFocus(t *testing.T) {
	require := require.New(t)

	v := NewLockVisitor(true)
	require.Equal(1, v.Level())
	v.Lock(ContextResource)
	require.Len(v.Locks(), 0)

	v = NewLockVisitor(false)
	v.EnterFocus()
	v.Lock(ContextResource)
	v.Lock("db")
	v.ExitFocus()
	require.Equal(0, v.Level())
	require.Equal([]string{"db"}, v.Locks())
}

func TestLockResultCompatible(t *testing.T) {
	testCases := []struct {
		name       string
		a, b       *LockResult
		compatible bool
	}{
		{
			"readers",
			&LockResult{Read: []string{"a"}},
			&LockResult{Read: []string{"a"}, ReadAll: true},
			true,
		},
		{
			"disjoint writers",
			&LockResult{Write: []string{"a"}},
			&LockResult{Write: []string{"b"}, Read: []string{"c"}},
			true,
		},
		{
			"write read conflict",
			&LockResult{Write: []string{"a"}},
			&LockResult{Read: []string{"b", "a"}},
			false,
		},
		{
			"read write conflict",
			&LockResult{Read: []string{"a"}},
			&LockResult{Write: []string{"a"}},
			false,
		},
		{
			"write all",
			&LockResult{WriteAll: true},
			&LockResult{Read: []string{"x"}},
			false,
		},
		{
			"write all against nothing",
			&LockResult{WriteAll: true},
			&LockResult{},
			true,
		},
		{
			"read all against writer",
			&LockResult{ReadAll: true},
			&LockResult{Write: []string{"x"}},
			false,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.compatible, tt.a.Compatible(tt.b))
			require.Equal(t, tt.compatible, tt.b.Compatible(tt.a))
		})
	}
}

func TestLockResultString(t *testing.T) {
	r := &LockResult{Read: []string{"a", "b"}, WriteAll: true}
	require.Equal(t, "read: [a b], write: *", r.String())
}
