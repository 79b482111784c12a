package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/roam/pkg/interfaces"
)

// Subscription is the owned handle of a live memory listener
type Subscription struct {
	once sync.Once
	stop func()
}

// Release stops the listener. It is safe to call more than once, but not from inside
// the listener callback.
func (s *Subscription) Release() {
	s.once.Do(s.stop)
}

// Subscribe starts a live listener over all memories. onChange receives the complete
// current set on every change. A UseCase holds at most one subscription: starting a new
// one releases the previous.
func (u *UseCase) Subscribe(ctx context.Context, onChange interfaces.OnMemories) (*Subscription, error) {
	u.subMu.Lock()
	defer u.subMu.Unlock()

	if u.sub != nil {
		u.sub.Release()
		u.sub = nil
	}

	watch, err := u.repo.WatchMemories(ctx, onChange)
	if err != nil {
		return nil, err
	}

	u.sub = &Subscription{stop: watch.Stop}
	return u.sub, nil
}
