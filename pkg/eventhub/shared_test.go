package eventhub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/eventhub/pkg/eventhub"
)

func TestShared(t *testing.T) {
	h := eventhub.Shared()
	t.Cleanup(h.Shutdown)
	assert.NotNil(t, h)
	assert.Same(t, h, eventhub.Shared(), "accessor returns the same instance")

	replacement := eventhub.NewEventHub()
	t.Cleanup(replacement.Shutdown)
	eventhub.SetShared(replacement)
	assert.Same(t, replacement, eventhub.Shared())
}
