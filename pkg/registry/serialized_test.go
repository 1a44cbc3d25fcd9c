package registry_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

// overlapDetector records whether two calls were ever in flight together.
type overlapDetector struct {
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (o *overlapDetector) enter() {
	if o.inFlight.Add(1) > 1 {
		o.overlap.Store(true)
	}
	time.Sleep(time.Millisecond)
	o.inFlight.Add(-1)
}

func (o *overlapDetector) Store(context.Context, string, string) (bool, error) {
	o.enter()
	return true, nil
}

func (o *overlapDetector) Retrieve(context.Context, string) (registry.Tokens, bool, error) {
	o.enter()
	return registry.Tokens{}, false, nil
}

func (o *overlapDetector) Forget(context.Context, string, string) (bool, error) {
	o.enter()
	return true, nil
}

func TestSerialized_NoOverlap(t *testing.T) {
	ctx := context.Background()
	inner := &overlapDetector{}
	repo := registry.Serialized(inner)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); _, _ = repo.Store(ctx, "k", "v") }()
		go func() { defer wg.Done(); _, _, _ = repo.Retrieve(ctx, "k") }()
		go func() { defer wg.Done(); _, _ = repo.Forget(ctx, "k", "") }()
	}
	wg.Wait()

	assert.False(t, inner.overlap.Load())
}
