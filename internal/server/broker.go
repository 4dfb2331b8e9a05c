package server

import "sync"

// Broker fans reload messages out to every connected browser. Slow
// subscribers miss messages rather than block publishers.
type Broker struct {
	stopCh    chan struct{}
	stopOnce  sync.Once
	publishCh chan string
	subCh     chan chan string
	unsubCh   chan chan string
}

func newBroker() *Broker {
	return &Broker{
		stopCh:    make(chan struct{}),
		publishCh: make(chan string, 1),
		subCh:     make(chan chan string),
		unsubCh:   make(chan chan string),
	}
}

func (b *Broker) Start() {
	subs := map[chan string]struct{}{}
	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return
		case ch := <-b.subCh:
			subs[ch] = struct{}{}
		case ch := <-b.unsubCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		case msg := <-b.publishCh:
			for ch := range subs {
				select {
				case ch <- msg:
				default:
				}
			}
		}
	}
}

func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe returns a channel receiving every later message. It is closed
// on Unsubscribe or when the broker stops.
func (b *Broker) Subscribe() chan string {
	ch := make(chan string, 1)
	select {
	case b.subCh <- ch:
	case <-b.stopCh:
		close(ch)
	}
	return ch
}

func (b *Broker) Unsubscribe(ch chan string) {
	select {
	case b.unsubCh <- ch:
	case <-b.stopCh:
	}
}

func (b *Broker) Publish(msg string) {
	select {
	case b.publishCh <- msg:
	case <-b.stopCh:
	}
}
