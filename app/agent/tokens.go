package agent

import (
	"log"
	"sync"
	"time"

	"auticare/types"

	"github.com/pkoukk/tiktoken-go"
)

// encodingWait bounds how long callers block on the first BPE download.
// Until the encoding arrives tokens are estimated.
const encodingWait = 3 * time.Second

// lazyEncoder loads the encoding in the background on first use.
type lazyEncoder struct {
	load func() (*tiktoken.Tiktoken, error)
	wait time.Duration

	once     sync.Once
	ready    chan struct{}
	deadline time.Time
	enc      *tiktoken.Tiktoken
}

func newLazyEncoder(load func() (*tiktoken.Tiktoken, error), wait time.Duration) *lazyEncoder {
	return &lazyEncoder{load: load, wait: wait, ready: make(chan struct{})}
}

var encoding = newLazyEncoder(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.EncodingForModel("gpt-3.5-turbo")
}, encodingWait)

func (l *lazyEncoder) get() *tiktoken.Tiktoken {
	l.once.Do(func() {
		l.deadline = time.Now().Add(l.wait)
		go func() {
			defer close(l.ready)
			e, err := l.load()
			if err != nil {
				log.Printf("[TOKENS] tiktoken unavailable, estimating: %v", err)
				return
			}
			l.enc = e
		}()
	})
	select {
	case <-l.ready:
		return l.enc
	default:
	}
	remaining := time.Until(l.deadline)
	if remaining <= 0 {
		return nil
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-l.ready:
		return l.enc
	case <-t.C:
		return nil
	}
}

// CountTokens uses the cl100k encoding as an approximation for every model.
// Without the encoding it estimates four characters per token.
func CountTokens(text string) int {
	if e := encoding.get(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

func EstimateTokens(text string) int {
	return (len([]rune(text)) + 3) / 4
}

// CountMessages adds a small per-message overhead for role framing.
func CountMessages(messages []types.Message) int {
	n := 0
	for _, m := range messages {
		n += 4 + CountTokens(m.Content)
	}
	return n
}

// EstimateMessages is CountMessages with the character estimate only.
func EstimateMessages(messages []types.Message) int {
	n := 0
	for _, m := range messages {
		n += 4 + EstimateTokens(m.Content)
	}
	return n
}
