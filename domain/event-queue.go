package domain

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
)

const eventQueuePollInterval = 10 * time.Millisecond

// EventQueue is a Sink that hands events off to the wrapped sink on its own
// goroutine, so a slow consumer never blocks stream processing. Events are
// delivered in the exact order they were enqueued.
type EventQueue struct {
	sink Sink

	queue deque.Deque[interface{}]
	mu    sync.Mutex
	done  chan struct{}
	wg    sync.WaitGroup
}

func NewEventQueue(sink Sink) *EventQueue {
	return &EventQueue{
		sink: sink,
		done: make(chan struct{}),
	}
}

func (q *EventQueue) Start() {
	q.wg.Add(1)
	go q.drain()
}

// Stop shuts the drain loop down after the queue is empty.
func (q *EventQueue) Stop() {
	close(q.done)
	q.wg.Wait()
}

func (q *EventQueue) OnTrade(t *Trade)                { q.push(t) }
func (q *EventQueue) OnBookUpdate(u *BookUpdate)      { q.push(u) }
func (q *EventQueue) OnQuote(quote *Quote)            { q.push(quote) }
func (q *EventQueue) OnFunding(f *Funding)            { q.push(f) }
func (q *EventQueue) OnOpenInterest(oi *OpenInterest) { q.push(oi) }

func (q *EventQueue) push(event interface{}) {
	q.mu.Lock()
	q.queue.PushBack(event)
	q.mu.Unlock()
}

func (q *EventQueue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if q.queue.Len() == 0 {
			q.mu.Unlock()

			select {
			case <-q.done:
				// Drain whatever was enqueued before Stop.
				q.mu.Lock()
				if q.queue.Len() == 0 {
					q.mu.Unlock()
					return
				}
				q.mu.Unlock()
				continue
			case <-time.After(eventQueuePollInterval):
				continue
			}
		}

		event := q.queue.PopFront()
		q.mu.Unlock()

		q.dispatch(event)
	}
}

func (q *EventQueue) dispatch(event interface{}) {
	switch e := event.(type) {
	case *Trade:
		q.sink.OnTrade(e)
	case *BookUpdate:
		q.sink.OnBookUpdate(e)
	case *Quote:
		q.sink.OnQuote(e)
	case *Funding:
		q.sink.OnFunding(e)
	case *OpenInterest:
		q.sink.OnOpenInterest(e)
	}
}
