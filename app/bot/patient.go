package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"auticare/app/agent"
	"auticare/index"
	"auticare/knowledge"
	"auticare/types"
)

const (
	PatientGreeting = "Hi! I'm your Autism Advisor. How can I help today?\n- Early signs of autism\n- Evidence‑based therapies\n- Support at home and school"
	PatientIdentity = "I'm your Autism Advisor, a supportive assistant that explains autism clearly and suggests practical next steps. Ask me about early signs, therapies, school support, or daily strategies."
	NoDetailsReply  = "I didn't find details to answer that directly. Try asking about early signs, therapies, or support at home and school."

	PatientHistoryMessages = 4
	// A scored extract at or above this answers without calling a model.
	DirectAnswerScore = 2
	patientRefs       = 3
)

var (
	patientGreetings = map[string]bool{"hi": true, "hello": true, "hey": true, "hai": true, "hola": true}
	identityPhrases  = []string{"who are you", "what are you", "what is this", "what can you do", "your name", "who r u"}
)

// Augmenter appends live information to an answer when the query asks for
// it.
type Augmenter interface {
	Augment(ctx context.Context, query, answer string) string
}

// DoctorAssembler and PatientAssembler are the prompt layouts of the two bots.
func DoctorAssembler(budget int, count func([]types.Message) int) Assembler {
	return Assembler{
		System:          DoctorSystemPrompt,
		Instructions:    DoctorInstructions,
		HistoryMessages: DoctorHistoryMessages,
		TokenBudget:     budget,
		Count:           count,
	}
}

func PatientAssembler(budget int, count func([]types.Message) int) Assembler {
	return Assembler{
		System:          PatientSystemPrompt,
		HistoryMessages: PatientHistoryMessages,
		TokenBudget:     budget,
		Count:           count,
	}
}

// Patient is the awareness bot. It keeps no memory; callers send history.
type Patient struct {
	Extractor *knowledge.Extractor
	Knowledge index.Index
	Gateway   *agent.Gateway
	Assembler Assembler
	Search    Augmenter
	Recorder  Recorder
	Logger    *slog.Logger

	now func() time.Time
}

func (p *Patient) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Patient) Chat(ctx context.Context, message string, history []types.Message) (Reply, error) {
	if strings.TrimSpace(message) == "" {
		return Reply{}, ErrEmptyMessage
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	return Reply{Text: p.answer(ctx, message, history), Timestamp: now().UTC()}, nil
}

func (p *Patient) answer(ctx context.Context, message string, history []types.Message) (content string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger().Error("patient pipeline panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			content = GenericErrorReply
		}
	}()

	lower := strings.ToLower(strings.TrimSpace(message))
	if patientGreetings[lower] || strings.HasPrefix(lower, "hi ") || strings.HasPrefix(lower, "hello ") {
		return PatientGreeting
	}
	for _, phrase := range identityPhrases {
		if strings.Contains(lower, phrase) {
			return PatientIdentity
		}
	}

	if p.Extractor != nil {
		if text, score := p.Extractor.Scored(message); text != "" && score >= DirectAnswerScore {
			p.logger().Info("answered from document", "score", score)
			content = text
		}
	}

	if content == "" {
		msgs := p.Assembler.Assemble(Input{
			Query:     message,
			Category:  types.CategoryGeneralKnowledge,
			Knowledge: p.references(ctx, message),
			History:   history,
		})
		if p.Gateway != nil {
			if res := p.Gateway.Complete(ctx, msgs); res.OK {
				content = res.Text
			}
		}
	}
	if content == "" {
		p.record("extractor")
		content = p.extract(message)
	}

	if p.Search != nil {
		content = p.Search.Augment(ctx, message, content)
	}
	content = knowledge.Scrub(content)

	if echoed(message, content) {
		p.record("echo_guard")
		content = p.extract(message)
	}
	return content
}

func (p *Patient) references(ctx context.Context, query string) []string {
	if !index.IsAvailable(p.Knowledge) {
		return nil
	}
	refs, err := p.Knowledge.Search(ctx, query, patientRefs)
	if err != nil {
		p.logger().Warn("knowledge search failed", "error", err.Error())
		return nil
	}
	return refs
}

func (p *Patient) extract(message string) string {
	if p.Extractor == nil {
		return NoDetailsReply
	}
	if text := p.Extractor.Extract(message); strings.TrimSpace(text) != "" {
		return text
	}
	return NoDetailsReply
}

func (p *Patient) record(source string) {
	if p.Recorder != nil {
		p.Recorder.Fallback("patient", source)
	}
}

// echoed reports replies that only parrot the question or a role label.
func echoed(message, reply string) bool {
	user := strings.ToLower(strings.TrimSpace(message))
	bot := strings.ToLower(strings.TrimSpace(reply))
	return bot == "" ||
		bot == user ||
		strings.HasSuffix(bot, ": "+user) ||
		strings.HasPrefix(bot, "patientbot:") ||
		strings.HasPrefix(bot, "assistant:")
}
