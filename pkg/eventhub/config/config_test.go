package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhub/pkg/eventhub/config"
)

func TestFromYAML(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		hub, err := config.FromYAML([]byte(`
wrapper: flutter
completion_workers: 8
readiness_retry_interval: 50ms
history:
  path: ./events.db
`))
		require.NoError(t, err)
		assert.Equal(t, "flutter", hub.Wrapper)
		assert.Equal(t, 8, hub.CompletionWorkers)
		assert.Equal(t, 50*time.Millisecond, hub.ReadinessRetryInterval)
		assert.Equal(t, "./events.db", hub.HistoryPath)
	})

	t.Run("omitted keys fall back to defaults", func(t *testing.T) {
		hub, err := config.FromYAML([]byte(`wrapper: unity`))
		require.NoError(t, err)
		assert.Equal(t, "unity", hub.Wrapper)
		assert.Equal(t, config.DefaultHub.CompletionWorkers, hub.CompletionWorkers)
		assert.Equal(t, config.DefaultHub.ReadinessRetryInterval, hub.ReadinessRetryInterval)
		assert.Empty(t, hub.HistoryPath)
	})

	t.Run("empty document is all defaults", func(t *testing.T) {
		hub, err := config.FromYAML(nil)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultHub, hub)
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		hub, err := config.FromYAML([]byte("unrelated: true"))
		require.NoError(t, err)
		assert.Equal(t, config.DefaultHub, hub)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.FromYAML([]byte("wrapper: [unclosed"))
		assert.Error(t, err)
	})
}

func TestFromYAML_Validation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"zero workers", "completion_workers: 0"},
		{"negative workers", "completion_workers: -2"},
		{"unparsable interval", `readiness_retry_interval: soon`},
		{"zero interval", `readiness_retry_interval: 0s`},
		{"negative interval", `readiness_retry_interval: -10ms`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(tt.doc))
			assert.Error(t, err, "present but invalid keys must fail the load")
		})
	}
}

func TestFromJSON(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		hub, err := config.FromJSON([]byte(`{
			"wrapper": "react_native",
			"completion_workers": 2,
			"readiness_retry_interval": "25ms",
			"history": {"path": "./events.db"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, "react_native", hub.Wrapper)
		assert.Equal(t, 2, hub.CompletionWorkers)
		assert.Equal(t, 25*time.Millisecond, hub.ReadinessRetryInterval)
		assert.Equal(t, "./events.db", hub.HistoryPath)
	})

	t.Run("partial", func(t *testing.T) {
		hub, err := config.FromJSON([]byte(`{"wrapper": "cordova"}`))
		require.NoError(t, err)
		assert.Equal(t, "cordova", hub.Wrapper)
		assert.Equal(t, config.DefaultHub.CompletionWorkers, hub.CompletionWorkers)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := config.FromJSON([]byte(`{"wrapper":`))
		assert.Error(t, err)
	})

	t.Run("validation applies to json too", func(t *testing.T) {
		_, err := config.FromJSON([]byte(`{"completion_workers": -1}`))
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hub.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
wrapper: react_native
completion_workers: 2
`), 0o644))

		hub, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "react_native", hub.Wrapper)
		assert.Equal(t, 2, hub.CompletionWorkers)
	})

	t.Run("yml extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hub.yml")
		require.NoError(t, os.WriteFile(path, []byte("wrapper: xamarin"), 0o644))

		hub, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "xamarin", hub.Wrapper)
	})

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hub.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"wrapper": "unity"}`), 0o644))

		hub, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "unity", hub.Wrapper)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hub.toml")
		require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))
		_, err := config.Load(path)
		assert.Error(t, err)
	})
}
