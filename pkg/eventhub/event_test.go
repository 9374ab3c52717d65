package eventhub_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhub/pkg/eventhub"
)

func TestNew(t *testing.T) {
	t.Run("generates identity and timestamp", func(t *testing.T) {
		before := time.Now()
		e := eventhub.New("com.example.eventType.demo", "com.example.eventSource.request", nil)

		assert.NotEmpty(t, e.ID())
		assert.Equal(t, "com.example.eventType.demo", e.Type())
		assert.Equal(t, "com.example.eventSource.request", e.Source())
		assert.Empty(t, e.ResponseID())
		assert.Nil(t, e.Mask())
		assert.False(t, e.Timestamp().Before(before))
	})

	t.Run("distinct events get distinct ids", func(t *testing.T) {
		e1 := eventhub.New("t", "s", nil)
		e2 := eventhub.New("t", "s", nil)
		assert.NotEqual(t, e1.ID(), e2.ID())
	})

	t.Run("options", func(t *testing.T) {
		ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		e := eventhub.New("t", "s", nil,
			eventhub.WithEventID("fixed-id"),
			eventhub.WithParentID("parent-id"),
			eventhub.WithMask([]string{"a.b"}),
			eventhub.WithTimestamp(ts),
		)

		assert.Equal(t, "fixed-id", e.ID())
		assert.Equal(t, "parent-id", e.ParentID())
		assert.Equal(t, []string{"a.b"}, e.Mask())
		assert.Equal(t, ts, e.Timestamp())
	})
}

func TestEvent_DataImmutability(t *testing.T) {
	t.Run("constructor copies the payload", func(t *testing.T) {
		data := map[string]any{"outer": map[string]any{"inner": "v"}}
		e := eventhub.New("t", "s", data)
		data["outer"].(map[string]any)["inner"] = "mutated"

		assert.Equal(t, "v", e.Data()["outer"].(map[string]any)["inner"])
	})

	t.Run("accessor returns a copy", func(t *testing.T) {
		e := eventhub.New("t", "s", map[string]any{"k": "v"})
		e.Data()["k"] = "mutated"
		assert.Equal(t, "v", e.Data()["k"])
	})
}

func TestNewResponseEvent(t *testing.T) {
	trigger := eventhub.New("t", "s", map[string]any{"q": 1})
	resp := eventhub.NewResponseEvent(trigger, "t", "com.example.eventSource.response", map[string]any{"a": 2})

	assert.Equal(t, trigger.ID(), resp.ResponseID())
	assert.Equal(t, trigger.ID(), resp.ParentID())
	assert.NotEqual(t, trigger.ID(), resp.ID())
	assert.Equal(t, map[string]any{"a": 2}, resp.Data())
}

func TestEvent_CloneWithData(t *testing.T) {
	orig := eventhub.New("t", "s", map[string]any{"k": "v"},
		eventhub.WithMask([]string{"k"}),
	)
	clone := orig.CloneWithData(map[string]any{"k": "transformed"})

	require.NotNil(t, clone)
	assert.Equal(t, orig.ID(), clone.ID(), "clone keeps identity")
	assert.Equal(t, orig.Type(), clone.Type())
	assert.Equal(t, orig.Mask(), clone.Mask())
	assert.Equal(t, orig.Timestamp(), clone.Timestamp())
	assert.Equal(t, map[string]any{"k": "transformed"}, clone.Data())
	assert.Equal(t, map[string]any{"k": "v"}, orig.Data(), "original unchanged")
}
