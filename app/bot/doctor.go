package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"auticare/app/agent"
	"auticare/index"
	"auticare/knowledge"
	"auticare/memory"
	"auticare/store"
	"auticare/types"
)

var ErrEmptyMessage = errors.New("message cannot be empty")

const (
	DoctorGreeting     = "Hello Doctor! I'm your autism specialist assistant. I can help you with patient information, autism questions, and medical guidance. How can I help you today?"
	DoctorEmptyPrompt  = "Please ask me something about autism or patient information."
	GenericErrorReply  = "I'm sorry, I encountered an error. Please try asking your question again."
	NoModelAccessReply = "I don't have model access right now. Please try again or check API keys."

	DoctorHistoryMessages = 10
	knowledgeK            = 5
	summaryMax            = 400
	guidanceMax           = 500
)

var summaryKeys = []string{"Patient ID:", "Patient Name:", "Gender:", "Patient Data:", "Medical Suggestion:"}

type Reply struct {
	Text      string
	Timestamp time.Time
}

// Recorder observes answers produced without a model.
type Recorder interface {
	Fallback(bot, source string)
}

// Pipeline turns one query and the prior conversation into an answer.
type Pipeline interface {
	Run(ctx context.Context, query string, history []types.Message) string
}

// Generator holds the collaborators shared by both doctor pipelines.
type Generator struct {
	Resolver  *store.Resolver
	Knowledge index.Index
	Extractor *knowledge.Extractor
	Gateway   *agent.Gateway
	Assembler Assembler
	Recorder  Recorder
	Logger    *slog.Logger
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Generator) patientContext(query string) string {
	if g.Resolver == nil {
		return ""
	}
	res := g.Resolver.Resolve(query)
	if !res.Found() {
		g.logger().Info("no patient resolved", "query", query)
		return ""
	}
	g.logger().Info("patient resolved", "via", res.Via)
	return res.Format()
}

func (g *Generator) references(ctx context.Context, query string) []string {
	if !index.IsAvailable(g.Knowledge) {
		return nil
	}
	refs, err := g.Knowledge.Search(ctx, query, knowledgeK)
	if err != nil {
		g.logger().Warn("knowledge search failed", "error", err.Error())
		return nil
	}
	return refs
}

// generate calls the gateway with whatever context was gathered and falls
// back to a local answer when every provider fails.
func (g *Generator) generate(ctx context.Context, c types.ClassifiedQuery, patient string, refs []string, searched bool, history []types.Message) string {
	if patient == "" && len(refs) == 0 && !searched {
		refs = g.references(ctx, c.Text)
	}

	msgs := g.Assembler.Assemble(Input{
		Query:          c.Text,
		Category:       c.Category,
		PatientContext: patient,
		Knowledge:      refs,
		History:        history,
	})
	if g.Gateway != nil {
		if res := g.Gateway.Complete(ctx, msgs); res.OK {
			return res.Text
		}
	}
	return g.fallback(c.Text, patient, refs)
}

func (g *Generator) fallback(query, patient string, refs []string) string {
	var parts []string
	if patient != "" {
		if lines := keyLines(patient); len(lines) > 0 {
			parts = append(parts, "Patient summary: "+cut(strings.Join(lines, "; "), summaryMax))
		}
	}
	if len(refs) > 0 {
		parts = append(parts, "Relevant guidance: "+Truncate(FormatKnowledge(refs), guidanceMax))
	}
	if len(parts) > 0 {
		g.record("context")
		return strings.Join(parts, "\n\n")
	}
	if g.Extractor != nil && g.Extractor.Available() {
		g.record("extractor")
		return g.Extractor.Extract(query)
	}
	g.record("none")
	return NoModelAccessReply
}

func (g *Generator) record(source string) {
	if g.Recorder != nil {
		g.Recorder.Fallback("doctor", source)
	}
}

// keyLines picks the first line starting with each summary key.
func keyLines(patient string) []string {
	var lines []string
	for _, l := range strings.Split(patient, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	var out []string
	for _, key := range summaryKeys {
		for _, l := range lines {
			if strings.HasPrefix(l, key) {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// GraphPipeline routes by classification: greetings answer directly, patient
// queries gather the record, everything else gathers knowledge.
type GraphPipeline struct {
	*Generator
}

func (p GraphPipeline) Run(ctx context.Context, query string, history []types.Message) string {
	c := Classify(query)
	switch c.Category {
	case types.CategoryGreeting:
		return DoctorGreeting
	case types.CategoryPatientRelated:
		return p.generate(ctx, c, p.patientContext(query), nil, false, history)
	default:
		return p.generate(ctx, c, "", p.references(ctx, query), true, history)
	}
}

// DirectPipeline gathers both record and knowledge for every non-greeting
// query.
type DirectPipeline struct {
	*Generator
}

func (p DirectPipeline) Run(ctx context.Context, query string, history []types.Message) string {
	if isShortGreeting(query) {
		return DoctorGreeting
	}
	c := Classify(query)
	if c.Category == types.CategoryGreeting {
		c.Category = types.CategoryGeneralKnowledge
	}
	return p.generate(ctx, c, p.patientContext(query), p.references(ctx, query), true, history)
}

// NewPipeline selects the pipeline by name.
func NewPipeline(name string, g *Generator) (Pipeline, error) {
	switch strings.ToLower(name) {
	case "", "graph":
		return GraphPipeline{g}, nil
	case "direct":
		return DirectPipeline{g}, nil
	default:
		return nil, fmt.Errorf("unknown pipeline %q", name)
	}
}

// Doctor is the clinician-facing bot. It owns its conversation memory.
type Doctor struct {
	pipeline Pipeline
	memory   *memory.Memory
	logger   *slog.Logger
	now      func() time.Time
}

func NewDoctor(p Pipeline, mem *memory.Memory, logger *slog.Logger) *Doctor {
	if logger == nil {
		logger = slog.Default()
	}
	if mem == nil {
		mem = memory.New(memory.DefaultSize)
	}
	return &Doctor{pipeline: p, memory: mem, logger: logger, now: time.Now}
}

func (d *Doctor) Chat(ctx context.Context, message string) (Reply, error) {
	if strings.TrimSpace(message) == "" {
		return Reply{Text: DoctorEmptyPrompt}, ErrEmptyMessage
	}
	text := d.run(ctx, message)
	d.memory.Append(ctx, message, text)
	return Reply{Text: text, Timestamp: d.now().UTC()}, nil
}

func (d *Doctor) run(ctx context.Context, message string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("doctor pipeline panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			text = GenericErrorReply
		}
	}()
	text = d.pipeline.Run(ctx, message, d.memory.History())
	if strings.TrimSpace(text) == "" {
		text = GenericErrorReply
	}
	return text
}

func (d *Doctor) Memory() string {
	return d.memory.Summarize()
}

func (d *Doctor) ClearMemory(ctx context.Context) string {
	return d.memory.Clear(ctx)
}
