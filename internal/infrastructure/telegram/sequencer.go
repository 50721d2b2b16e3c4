package telegram

import "sync"

// sequencer runs tasks sharing a key one after another in submission order.
// Tasks with different keys run concurrently. A key's worker goroutine exits
// once its queue is empty.
type sequencer struct {
	mu     sync.Mutex
	queues map[int64][]func()
	wg     sync.WaitGroup
}

func newSequencer() *sequencer {
	return &sequencer{queues: make(map[int64][]func())}
}

// Go queues task behind every earlier task of key.
func (s *sequencer) Go(key int64, task func()) {
	s.wg.Add(1)

	s.mu.Lock()
	queue, running := s.queues[key]
	s.queues[key] = append(queue, task)
	s.mu.Unlock()

	if !running {
		go s.drain(key)
	}
}

// Wait blocks until every queued task has finished.
func (s *sequencer) Wait() {
	s.wg.Wait()
}

func (s *sequencer) drain(key int64) {
	for {
		s.mu.Lock()
		queue := s.queues[key]
		if len(queue) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		task := queue[0]
		queue[0] = nil
		s.queues[key] = queue[1:]
		s.mu.Unlock()

		s.run(task)
	}
}

func (s *sequencer) run(task func()) {
	defer s.wg.Done()
	task()
}

// senderID is the principal an update comes from, or 0 when it has none.
func senderID(update Update) int64 {
	switch {
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	default:
		return 0
	}
}
