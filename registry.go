package recorder

import (
	"fmt"
	"slices"
	"sync"
)

// StrategyFactory creates the output strategy for one session.
// Factories are registered via RegisterStrategy and called by NewSession.
type StrategyFactory func() Strategy

// Registry state - protected by mutex for thread-safe access.
var (
	registryMu sync.RWMutex
	strategies = make(map[Kind]StrategyFactory)
)

func init() {
	RegisterStrategy(KindImage, func() Strategy { return &imageStrategy{} })
	RegisterStrategy(KindAOV, func() Strategy { return &imageStrategy{} })
	RegisterStrategy(KindMovie, func() Strategy { return &movieStrategy{} })
	RegisterStrategy(KindAudio, func() Strategy { return &audioStrategy{} })
	RegisterStrategy(KindAnimation, func() Strategy { return &animationStrategy{} })
}

// RegisterStrategy registers the strategy factory used for kind. The
// built-in strategies are registered at init; replacing one takes an
// UnregisterStrategy first:
//
//	recorder.UnregisterStrategy(recorder.KindMovie)
//	recorder.RegisterStrategy(recorder.KindMovie, func() recorder.Strategy {
//	    return ffmpeg.NewStrategy()
//	})
//
// RegisterStrategy panics if:
//   - factory is nil
//   - kind is not a known Kind
//   - a strategy for kind is already registered
func RegisterStrategy(kind Kind, factory StrategyFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("recorder: RegisterStrategy factory is nil")
	}
	if !kind.Valid() {
		panic(fmt.Sprintf("recorder: RegisterStrategy for unknown kind %d", kind))
	}
	if _, dup := strategies[kind]; dup {
		panic("recorder: RegisterStrategy called twice for " + kind.String())
	}
	strategies[kind] = factory
}

// UnregisterStrategy removes the strategy for kind. Sessions of that kind
// fail to start until another one is registered, unless they carry
// WithStrategy.
func UnregisterStrategy(kind Kind) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(strategies, kind)
}

// NewStrategy creates the registered strategy for kind.
func NewStrategy(kind Kind) (Strategy, error) {
	registryMu.RLock()
	factory, ok := strategies[kind]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no strategy registered for kind %v", ErrInvalidSettings, kind)
	}
	return factory(), nil
}

// StrategyKinds returns the kinds with a registered strategy, in Kind order.
func StrategyKinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]Kind, 0, len(strategies))
	for k := range strategies {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
