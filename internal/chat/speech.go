package chat

import "sync"

// SpeechBuffer models continuous-listening speech input. Interim
// fragments overwrite a live display buffer without committing
// anything; a finalized utterance moves to a queue to be submitted as
// if it were typed, and the live buffer clears while listening
// continues. Stopping discards whatever interim text remains but keeps
// queued utterances.
type SpeechBuffer struct {
	mu        sync.Mutex
	listening bool
	interim   string
	queue     []string
}

func NewSpeechBuffer() *SpeechBuffer {
	return &SpeechBuffer{}
}

func (b *SpeechBuffer) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listening = true
}

func (b *SpeechBuffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listening = false
	b.interim = ""
}

func (b *SpeechBuffer) Listening() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listening
}

// Interim replaces the live buffer with the latest non-final fragment.
// Fragments arriving while not listening are dropped.
func (b *SpeechBuffer) Interim(fragment string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.listening {
		return
	}
	b.interim = fragment
}

// Live returns the current non-committed display text.
func (b *SpeechBuffer) Live() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interim
}

// Finalize commits an utterance to the submission queue and clears the
// live buffer. Listening continues until Stop.
func (b *SpeechBuffer) Finalize(utterance string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.listening {
		return
	}
	b.interim = ""
	if utterance != "" {
		b.queue = append(b.queue, utterance)
	}
}

// Dequeue pops the oldest finalized utterance, if any.
func (b *SpeechBuffer) Dequeue() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return "", false
	}
	u := b.queue[0]
	b.queue = b.queue[1:]
	return u, true
}
