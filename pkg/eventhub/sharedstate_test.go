package eventhub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhub/pkg/eventhub"
)

func TestSharedStateManager_SetState(t *testing.T) {
	t.Run("first snapshot at any version", func(t *testing.T) {
		m := eventhub.NewSharedStateManager("com.example.a")
		assert.True(t, m.SetState(5, map[string]any{"k": "v"}))
		assert.False(t, m.IsEmpty())
	})

	t.Run("versions must strictly increase", func(t *testing.T) {
		m := eventhub.NewSharedStateManager("com.example.a")
		require.True(t, m.SetState(1, map[string]any{"k": "v1"}))
		assert.False(t, m.SetState(1, map[string]any{"k": "dup"}))
		assert.False(t, m.SetState(0, map[string]any{"k": "old"}))
		assert.True(t, m.SetState(2, map[string]any{"k": "v2"}))
	})

	t.Run("set at newest pending resolves it", func(t *testing.T) {
		m := eventhub.NewSharedStateManager("com.example.a")
		require.True(t, m.SetPendingState(3))
		assert.True(t, m.SetState(3, map[string]any{"k": "v"}))

		res := m.Resolve(3)
		assert.Equal(t, eventhub.StateSet, res.Status)
		assert.Equal(t, map[string]any{"k": "v"}, res.Value)
	})

	t.Run("data is copied on write", func(t *testing.T) {
		m := eventhub.NewSharedStateManager("com.example.a")
		data := map[string]any{"k": "v"}
		require.True(t, m.SetState(1, data))
		data["k"] = "mutated"

		res := m.Resolve(1)
		assert.Equal(t, "v", res.Value["k"])
	})
}

func TestSharedStateManager_Pending(t *testing.T) {
	t.Run("pending resolves without data", func(t *testing.T) {
		m := eventhub.NewSharedStateManager("com.example.a")
		require.True(t, m.SetPendingState(2))

		res := m.Resolve(2)
		assert.Equal(t, eventhub.StatePending, res.Status)
		assert.Nil(t, res.Value)
	})

	t.Run("update converts pending exactly once", func(t *testing.T) {
		m := eventhub.NewSharedStateManager("com.example.a")
		require.True(t, m.SetPendingState(2))

		assert.True(t, m.UpdatePendingState(2, map[string]any{"x": 1}))
		assert.False(t, m.UpdatePendingState(2, map[string]any{"x": 2}))

		res := m.Resolve(2)
		assert.Equal(t, eventhub.StateSet, res.Status)
		assert.Equal(t, map[string]any{"x": 1}, res.Value)
	})

	t.Run("update at unknown version fails", func(t *testing.T) {
		m := eventhub.NewSharedStateManager("com.example.a")
		require.True(t, m.SetPendingState(2))
		assert.False(t, m.UpdatePendingState(3, map[string]any{"x": 1}))
	})

	t.Run("pending version ordering enforced", func(t *testing.T) {
		m := eventhub.NewSharedStateManager("com.example.a")
		require.True(t, m.SetState(5, map[string]any{"k": "v"}))
		assert.False(t, m.SetPendingState(5))
		assert.False(t, m.SetPendingState(4))
		assert.True(t, m.SetPendingState(6))
	})
}

func TestSharedStateManager_Resolve(t *testing.T) {
	m := eventhub.NewSharedStateManager("com.example.a")
	require.True(t, m.SetState(2, map[string]any{"v": 2}))
	require.True(t, m.SetPendingState(5))
	require.True(t, m.SetState(8, map[string]any{"v": 8}))

	tests := []struct {
		name    string
		version int64
		status  eventhub.StateStatus
		value   map[string]any
	}{
		{"below first snapshot", 1, eventhub.StateNone, nil},
		{"exact match", 2, eventhub.StateSet, map[string]any{"v": 2}},
		{"between snapshots", 4, eventhub.StateSet, map[string]any{"v": 2}},
		{"pending wins at its version", 5, eventhub.StatePending, nil},
		{"pending still newest below 8", 7, eventhub.StatePending, nil},
		{"newest set", 8, eventhub.StateSet, map[string]any{"v": 8}},
		{"latest sentinel", eventhub.VersionLatest, eventhub.StateSet, map[string]any{"v": 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Resolve(tt.version)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.value, res.Value)
		})
	}
}

func TestSharedStateManager_ResolveLastSet(t *testing.T) {
	m := eventhub.NewSharedStateManager("com.example.a")
	require.True(t, m.SetState(2, map[string]any{"v": 2}))
	require.True(t, m.SetPendingState(5))

	t.Run("skips pending", func(t *testing.T) {
		res := m.ResolveLastSet(6)
		assert.Equal(t, eventhub.StateSet, res.Status)
		assert.Equal(t, map[string]any{"v": 2}, res.Value)
	})

	t.Run("none below first set", func(t *testing.T) {
		res := m.ResolveLastSet(1)
		assert.Equal(t, eventhub.StateNone, res.Status)
		assert.Nil(t, res.Value)
	})
}

func TestSharedStateManager_Clear(t *testing.T) {
	m := eventhub.NewSharedStateManager("com.example.a")
	require.True(t, m.SetState(1, map[string]any{"k": "v"}))
	require.False(t, m.IsEmpty())

	m.Clear()
	assert.True(t, m.IsEmpty())
	assert.Equal(t, eventhub.StateNone, m.Resolve(eventhub.VersionLatest).Status)
}
