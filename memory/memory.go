package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"auticare/types"

	"github.com/google/uuid"
)

const (
	DefaultSize  = 5
	EmptyMessage = "I don't have any conversation memory yet."
	ClearedReply = "My memory has been cleared!"
)

// Persister mirrors memory snapshots outside the process.
type Persister interface {
	Save(ctx context.Context, turns []types.Turn) error
	Load(ctx context.Context) ([]types.Turn, error)
}

// Memory is the bounded turn log owned by one bot instance.
type Memory struct {
	mu        sync.Mutex
	size      int
	turns     []types.Turn
	persister Persister
	logger    *slog.Logger
	now       func() time.Time

	// version counts mutations. Saves run one at a time under persistMu and
	// a snapshot older than the last saved one is dropped.
	version   uint64
	persistMu sync.Mutex
	saved     uint64
}

type Option func(*Memory)

func WithPersister(p Persister) Option {
	return func(m *Memory) { m.persister = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Memory) { m.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

func New(size int, opts ...Option) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	m := &Memory{size: size, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads the persisted snapshot, keeping at most size turns.
func (m *Memory) Restore(ctx context.Context) error {
	if m.persister == nil {
		return nil
	}
	turns, err := m.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(turns) > m.size {
		turns = turns[len(turns)-m.size:]
	}
	m.turns = turns
	return nil
}

// Append records one exchange and truncates to the most recent turns.
func (m *Memory) Append(ctx context.Context, user, assistant string) types.Turn {
	m.mu.Lock()
	turn := types.Turn{
		ID:        uuid.New(),
		User:      user,
		Assistant: assistant,
		Timestamp: m.now().UTC(),
	}
	m.turns = append(m.turns, turn)
	if len(m.turns) > m.size {
		m.turns = append([]types.Turn(nil), m.turns[len(m.turns)-m.size:]...)
	}
	snapshot, version := m.snapshotLocked(), m.bumpLocked()
	m.mu.Unlock()

	m.persist(ctx, snapshot, version)
	return turn
}

func (m *Memory) Turns() []types.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// History returns the turns as alternating user/assistant messages.
func (m *Memory) History() []types.Message {
	turns := m.Turns()
	out := make([]types.Message, 0, 2*len(turns))
	for _, t := range turns {
		out = append(out, t.Messages()...)
	}
	return out
}

func (m *Memory) Summarize() string {
	turns := m.Turns()
	if len(turns) == 0 {
		return EmptyMessage
	}
	var sb strings.Builder
	sb.WriteString("Here's what I remember from our conversation:\n\n")
	for i, t := range turns {
		fmt.Fprintf(&sb, "%d. You asked: %s\n", i+1, preview(t.User, 50))
		fmt.Fprintf(&sb, "   I discussed: %s\n\n", preview(t.Assistant, 100))
	}
	return sb.String()
}

func (m *Memory) Clear(ctx context.Context) string {
	m.mu.Lock()
	m.turns = nil
	version := m.bumpLocked()
	m.mu.Unlock()

	m.persist(ctx, nil, version)
	return ClearedReply
}

func (m *Memory) snapshotLocked() []types.Turn {
	out := make([]types.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

func (m *Memory) bumpLocked() uint64 {
	m.version++
	return m.version
}

func (m *Memory) persist(ctx context.Context, turns []types.Turn, version uint64) {
	if m.persister == nil {
		return
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	if version <= m.saved {
		return
	}
	if err := m.persister.Save(ctx, turns); err != nil {
		m.logger.Warn("memory snapshot not saved", "error", err.Error())
		return
	}
	m.saved = version
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
