package design

import (
	"sync"
	"time"
)

// progressTicker publishes the initial loading message, then one message of
// the rotation per interval until Stop.
type progressTicker struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startProgress(interval time.Duration, publish func(string)) *progressTicker {
	publish(initialProgressMessage)

	t := &progressTicker{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		idx := 0
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				// stop가 먼저 왔으면 메시지 발행 안 함
				select {
				case <-t.stop:
					return
				default:
				}
				publish(progressMessages[idx])
				idx = (idx + 1) % len(progressMessages)
			}
		}
	}()

	return t
}

// Stop is idempotent and returns once no further message can be published.
// Must not be called while holding a lock that publish acquires.
func (t *progressTicker) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
