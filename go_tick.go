package gocork

import "time"

// TickPeriod runs a tick loop for hosts without one of their own,
// calling TickEnd every period until the pipeline is closed. With cork,
// messages enqueued by the dispatcher during a tick are batched into a
// single blob per session.
func (p *Pipeline) TickPeriod(period time.Duration, cork bool) {
	tick := time.NewTicker(period)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
			case <-p.killch:
				return
			}
			if cork {
				p.SetPause(true)
			}
			p.TickEnd()
			if cork {
				p.SetPause(false)
			}
		}
	}()
}
