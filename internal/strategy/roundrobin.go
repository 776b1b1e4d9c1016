package strategy

import (
	"sync"

	"github.com/angeloszaimis/alb/internal/application"
)

type roundRobinStrategy struct {
	mutex   sync.Mutex
	current int
}

// SelectApplication returns apps[cursor] and advances the cursor. A cursor
// left beyond the end by a shrinking set is reset to the first member.
func (rr *roundRobinStrategy) SelectApplication(apps []*application.Application) *application.Application {
	rr.mutex.Lock()
	defer rr.mutex.Unlock()

	if len(apps) == 0 {
		return nil
	}

	if rr.current >= len(apps) {
		rr.current = 0
	}

	selected := apps[rr.current]
	rr.current++

	return selected
}

func NewRoundRobinStrategy() Strategy {
	return &roundRobinStrategy{
		current: 0,
	}
}
