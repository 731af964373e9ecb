package task

import "sync"

// Token carries a cooperative cancellation request into an executor. An
// executor observes it at its own checkpoints; cancellation is best-effort,
// never a hard kill
type Token struct {
	done chan struct{}
	once sync.Once
}

// NewToken creates an unsignalled cancellation token
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel signals the token. Safe to call more than once
func (t *Token) Cancel() {
	t.once.Do(func() {
		close(t.done)
	})
}

// Cancelled reports whether cancellation has been requested
func (t *Token) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when cancellation is requested
func (t *Token) Done() <-chan struct{} {
	return t.done
}
