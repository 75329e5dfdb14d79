package session

import "github.com/grocerybabu/voice-core/internal/agent/model"

// Transcript is a fixed capacity ring of turns; the oldest turn is evicted
// first.
type Transcript struct {
	buf   []model.Turn
	start int
	size  int
}

func NewTranscript(capacity int) *Transcript {
	if capacity <= 0 {
		capacity = 10
	}
	return &Transcript{buf: make([]model.Turn, capacity)}
}

func (t *Transcript) Cap() int { return len(t.buf) }

func (t *Transcript) Len() int { return t.size }

func (t *Transcript) Append(turn model.Turn) {
	if t.size < len(t.buf) {
		t.buf[(t.start+t.size)%len(t.buf)] = turn
		t.size++
		return
	}
	t.buf[t.start] = turn
	t.start = (t.start + 1) % len(t.buf)
}

// Last returns up to n of the newest turns, oldest first. n <= 0 means all.
func (t *Transcript) Last(n int) []model.Turn {
	if n <= 0 || n > t.size {
		n = t.size
	}
	out := make([]model.Turn, n)
	for i := range n {
		out[i] = t.buf[(t.start+t.size-n+i)%len(t.buf)]
	}
	return out
}
