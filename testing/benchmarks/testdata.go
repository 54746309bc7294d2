package benchmarks

import (
	"context"
	"fmt"

	"github.com/zoobzio/attachz"
)

// TestEvent is the payload type used by the benchmarks.
type TestEvent struct {
	ID   int
	Type string
}

func noop(ctx context.Context, evt TestEvent) error { return nil }

// discard is a Dispatcher that accepts every registration and keeps nothing,
// isolating the registrar's own cost.
type discard struct{}

func (discard) Once(string, attachz.Callback[TestEvent], *attachz.Options) error { return nil }
func (discard) On(string, attachz.Callback[TestEvent], *attachz.Options) error   { return nil }

// generateBatch builds a batch with n definitions per mode.
func generateBatch(n int) attachz.Definitions[TestEvent] {
	once := make(attachz.List[TestEvent], 0, n)
	on := make(attachz.List[TestEvent], 0, n)
	for i := 0; i < n; i++ {
		once = append(once, attachz.Definition[TestEvent]{Name: attachz.Name(fmt.Sprintf("once.%d", i)), Callback: noop})
		on = append(on, attachz.Definition[TestEvent]{
			Name:     attachz.Name(fmt.Sprintf("on.%d", i%10)),
			Callback: noop,
			Options:  &attachz.Options{Priority: i % 3},
		})
	}
	return attachz.Definitions[TestEvent]{attachz.Once: once, attachz.On: on}
}
