package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"auticare/app/agent"
	"auticare/knowledge"
	"auticare/memory"
	"auticare/store"
	"auticare/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// captureProvider records every prompt it is given.
type captureProvider struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts [][]types.Message
}

func (c *captureProvider) Name() string     { return "capture" }
func (c *captureProvider) Models() []string { return []string{"m1"} }

func (c *captureProvider) Complete(_ context.Context, _ string, msgs []types.Message, _ agent.Options) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, msgs)
	return c.answer, c.err
}

func (c *captureProvider) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

func (c *captureProvider) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	msgs := c.prompts[len(c.prompts)-1]
	return msgs[len(msgs)-1].Content
}

func newGateway(p agent.Provider) *agent.Gateway {
	return agent.NewGateway([]agent.Provider{p}, agent.WithLogger(quiet), agent.WithTokenCounter(agent.EstimateMessages))
}

var records = []types.Record{
	{ID: "992", Name: "John Doe", Gender: "Male", Notes: "Autism level 1, speech delay", Suggestion: "Speech therapy twice a week"},
	{ID: "17", Name: "Pamela Smith", Gender: "Female", Notes: "ADHD with anxiety", Suggestion: "Behavioral therapy"},
}

const guide = "Early signs of autism include limited eye contact and delayed speech. " +
	"Speech therapy helps children build communication skills. " +
	"Occupational therapy supports sensory processing and daily living skills. " +
	"Parents can use visual schedules to structure the day at home."

type fallbacks struct {
	mu      sync.Mutex
	sources []string
}

func (f *fallbacks) Fallback(_, source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
}

func generator(p agent.Provider) (*Generator, *fallbacks) {
	rec := &fallbacks{}
	g := &Generator{
		Resolver:  store.NewResolver(store.NewRecordStore(records, quiet)),
		Extractor: knowledge.NewExtractor(knowledge.FromPages([]string{guide}, 500, 10)),
		Assembler: DoctorAssembler(0, nil),
		Recorder:  rec,
		Logger:    quiet,
	}
	if p != nil {
		g.Gateway = newGateway(p)
	}
	return g, rec
}

func TestClassify(t *testing.T) {
	cases := []struct {
		query string
		want  types.Category
	}{
		{"Hi", types.CategoryGreeting},
		{"good morning doctor", types.CategoryGreeting},
		{"patient id 992", types.CategoryPatientRelated},
		{"tell me about john", types.CategoryPatientRelated},
		{"hello, can you tell me about patient 17 today", types.CategoryPatientRelated},
		{"what are autism symptoms?", types.CategoryGeneralKnowledge},
		{"which therapies help?", types.CategoryGeneralKnowledge},
	}
	for _, c := range cases {
		t.Run(c.query, func(t *testing.T) {
			got := Classify(c.query)
			assert.Equal(t, c.want, got.Category)
			assert.Equal(t, c.query, got.Text)
		})
	}
}

func TestAssemblerLayout(t *testing.T) {
	a := DoctorAssembler(0, nil)
	history := []types.Message{
		{Role: types.RoleSystem, Content: "ignored"},
		{Role: types.RoleUser, Content: "first"},
		{Role: types.RoleAssistant, Content: strings.Repeat("x", 1500)},
	}
	msgs := a.Assemble(Input{
		Query:          "how is he doing?",
		Category:       types.CategoryPatientRelated,
		PatientContext: "Patient Name: John Doe",
		Knowledge:      []string{"ref one"},
		History:        history,
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Equal(t, DoctorSystemPrompt, msgs[0].Content)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Len(t, []rune(msgs[2].Content), historyEntryMax+1)

	final := msgs[3].Content
	assert.True(t, strings.HasPrefix(final, "CURRENT PATIENT DATA:\nPatient Name: John Doe"))
	assert.Contains(t, final, "Reference 1:\nref one")
	assert.Contains(t, final, "CURRENT USER QUESTION: how is he doing?")
	assert.True(t, strings.HasSuffix(final, "RESPONSE (keep it brief and focused):"))
}

func TestAssemblerPlainQuestionAndBudget(t *testing.T) {
	var history []types.Message
	for i := 0; i < 10; i++ {
		history = append(history, types.Message{Role: types.RoleUser, Content: strings.Repeat("w", 400)})
	}
	a := PatientAssembler(300, agent.EstimateMessages)
	msgs := a.Assemble(Input{Query: "what is autism?", History: history})

	assert.Equal(t, "what is autism?", msgs[len(msgs)-1].Content)
	assert.LessOrEqual(t, agent.EstimateMessages(msgs), 300)
	assert.Less(t, len(msgs), PatientHistoryMessages+2)

	missing := DoctorAssembler(0, nil).Assemble(Input{Query: "patient 5", Category: types.CategoryPatientRelated})
	assert.Contains(t, missing[len(missing)-1].Content, patientNotFoundNote)
}

func TestDoctorGreetingSkipsProvider(t *testing.T) {
	p := &captureProvider{answer: "unused"}
	g, _ := generator(p)
	d := NewDoctor(GraphPipeline{g}, memory.New(5, memory.WithLogger(quiet)), quiet)

	reply, err := d.Chat(context.Background(), "Hello Doctor!")
	require.NoError(t, err)
	assert.Equal(t, DoctorGreeting, reply.Text)
	assert.Zero(t, p.calls())
	assert.False(t, reply.Timestamp.IsZero())
}

func TestDoctorPatientPromptCarriesRecord(t *testing.T) {
	p := &captureProvider{answer: "John needs speech therapy."}
	g, _ := generator(p)
	mem := memory.New(5, memory.WithLogger(quiet))
	d := NewDoctor(GraphPipeline{g}, mem, quiet)

	reply, err := d.Chat(context.Background(), "Can I get patient with id 992")
	require.NoError(t, err)
	assert.Equal(t, "John needs speech therapy.", reply.Text)
	assert.Contains(t, p.last(), "John Doe")
	assert.Contains(t, p.last(), "CURRENT USER QUESTION: Can I get patient with id 992")
	require.Len(t, mem.Turns(), 1)

	// The next turn carries the previous exchange as history.
	_, err = d.Chat(context.Background(), "what should we try next?")
	require.NoError(t, err)
	msgs := p.prompts[len(p.prompts)-1]
	require.Len(t, msgs, 4)
	assert.Equal(t, "Can I get patient with id 992", msgs[1].Content)
	assert.Equal(t, "John needs speech therapy.", msgs[2].Content)
}

func TestDoctorProviderFailureFallsBack(t *testing.T) {
	p := &captureProvider{err: errors.New("401 unauthorized")}
	g, rec := generator(p)
	d := NewDoctor(GraphPipeline{g}, memory.New(5, memory.WithLogger(quiet)), quiet)

	reply, err := d.Chat(context.Background(), "patient id 992")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply.Text, "Patient summary: Patient ID: 992; Patient Name: John Doe"))
	assert.Equal(t, []string{"context"}, rec.sources)

	reply, err = d.Chat(context.Background(), "how does speech therapy help?")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Speech therapy helps children build communication skills")
	assert.Equal(t, "extractor", rec.sources[len(rec.sources)-1])
}

func TestDoctorNoProvidersNoDocument(t *testing.T) {
	g := &Generator{Assembler: DoctorAssembler(0, nil), Logger: quiet}
	d := NewDoctor(DirectPipeline{g}, nil, quiet)

	reply, err := d.Chat(context.Background(), "what is autism?")
	require.NoError(t, err)
	assert.Equal(t, NoModelAccessReply, reply.Text)
}

func TestDoctorEmptyMessage(t *testing.T) {
	mem := memory.New(5, memory.WithLogger(quiet))
	d := NewDoctor(GraphPipeline{&Generator{Logger: quiet}}, mem, quiet)

	reply, err := d.Chat(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, DoctorEmptyPrompt, reply.Text)
	assert.Empty(t, mem.Turns())
	assert.Equal(t, memory.EmptyMessage, d.Memory())
}

type panicPipeline struct{}

func (panicPipeline) Run(context.Context, string, []types.Message) string { panic("broken") }

func TestDoctorRecoversFromPanic(t *testing.T) {
	mem := memory.New(5, memory.WithLogger(quiet))
	d := NewDoctor(panicPipeline{}, mem, quiet)

	reply, err := d.Chat(context.Background(), "what is autism?")
	require.NoError(t, err)
	assert.Equal(t, GenericErrorReply, reply.Text)
	require.Len(t, mem.Turns(), 1)

	assert.Equal(t, memory.ClearedReply, d.ClearMemory(context.Background()))
	assert.Empty(t, mem.Turns())
}

func TestDirectPipelineGathersBoth(t *testing.T) {
	p := &captureProvider{answer: "ok"}
	g, _ := generator(p)
	pipe, err := NewPipeline("direct", g)
	require.NoError(t, err)

	assert.Equal(t, DoctorGreeting, pipe.Run(context.Background(), "hey", nil))
	assert.Zero(t, p.calls())

	assert.Equal(t, "ok", pipe.Run(context.Background(), "john doe speech", nil))
	assert.Contains(t, p.last(), "John Doe")

	_, err = NewPipeline("tree", g)
	assert.Error(t, err)
}

func patient(p agent.Provider) (*Patient, *fallbacks) {
	rec := &fallbacks{}
	bot := &Patient{
		Extractor: knowledge.NewExtractor(knowledge.FromPages([]string{guide}, 500, 10)),
		Assembler: PatientAssembler(0, nil),
		Recorder:  rec,
		Logger:    quiet,
	}
	if p != nil {
		bot.Gateway = newGateway(p)
	}
	return bot, rec
}

func TestPatientFastPaths(t *testing.T) {
	p := &captureProvider{answer: "unused"}
	bot, _ := patient(p)

	for _, msg := range []string{"hi", "Hola", "hello there friend"} {
		reply, err := bot.Chat(context.Background(), msg, nil)
		require.NoError(t, err)
		assert.Equal(t, PatientGreeting, reply.Text)
	}
	reply, err := bot.Chat(context.Background(), "Who are you?", nil)
	require.NoError(t, err)
	assert.Equal(t, PatientIdentity, reply.Text)
	assert.Zero(t, p.calls())
}

func TestPatientDirectDocumentAnswer(t *testing.T) {
	p := &captureProvider{answer: "unused"}
	bot, _ := patient(p)

	reply, err := bot.Chat(context.Background(), "speech therapy", nil)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Speech therapy helps children build communication skills")
	assert.Zero(t, p.calls())
}

func TestPatientUsesModelWithHistory(t *testing.T) {
	p := &captureProvider{answer: "Routines help many autistic children feel secure."}
	bot, _ := patient(p)
	history := []types.Message{
		{Role: types.RoleUser, Content: "one"},
		{Role: types.RoleAssistant, Content: "two"},
		{Role: types.RoleUser, Content: "three"},
		{Role: types.RoleAssistant, Content: "four"},
		{Role: types.RoleUser, Content: "five"},
	}

	reply, err := bot.Chat(context.Background(), "why do routines matter?", history)
	require.NoError(t, err)
	assert.Equal(t, "Routines help many autistic children feel secure.", reply.Text)

	msgs := p.prompts[0]
	require.Len(t, msgs, PatientHistoryMessages+2)
	assert.Equal(t, PatientSystemPrompt, msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
	assert.Equal(t, "why do routines matter?", msgs[len(msgs)-1].Content)
}

func TestPatientFallbacks(t *testing.T) {
	failing := &captureProvider{err: errors.New("down")}
	bot, rec := patient(failing)
	reply, err := bot.Chat(context.Background(), "do schedules work?", nil)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "visual schedules")
	assert.Contains(t, rec.sources, "extractor")

	echo := &captureProvider{answer: "Assistant: do schedules work?"}
	bot, rec = patient(echo)
	reply, err = bot.Chat(context.Background(), "do schedules work?", nil)
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(reply.Text), "assistant:")
	assert.Contains(t, rec.sources, "echo_guard")

	bare := &Patient{Logger: quiet}
	reply, err = bare.Chat(context.Background(), "what about sleep?", nil)
	require.NoError(t, err)
	assert.Equal(t, NoDetailsReply, reply.Text)
}

type stubSearch struct{ snippet string }

func (s stubSearch) Augment(_ context.Context, _, answer string) string {
	return answer + "\n\nCurrent info: " + s.snippet
}

func TestPatientAugmentsAndRejectsEmpty(t *testing.T) {
	p := &captureProvider{answer: "Support groups meet monthly."}
	bot, _ := patient(p)
	bot.Search = stubSearch{snippet: "New guidance published."}

	reply, err := bot.Chat(context.Background(), "latest support news", nil)
	require.NoError(t, err)
	assert.Equal(t, "Support groups meet monthly.\n\nCurrent info: New guidance published.", reply.Text)

	_, err = bot.Chat(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestEchoed(t *testing.T) {
	assert.True(t, echoed("what is autism", ""))
	assert.True(t, echoed("What is autism", "what is autism"))
	assert.True(t, echoed("what is autism", "User: what is autism"))
	assert.True(t, echoed("x", "PatientBot: hello"))
	assert.False(t, echoed("what is autism", "Autism is a developmental condition."))
}

type panicIndex struct{}

func (panicIndex) Search(context.Context, string, int) ([]string, error) {
	panic("index driver bug")
}

func TestPatientRecoversFromPanic(t *testing.T) {
	p := &captureProvider{answer: "unused"}
	bot, _ := patient(p)
	bot.Knowledge = panicIndex{}

	reply, err := bot.Chat(context.Background(), "why do routines matter?", nil)
	require.NoError(t, err)
	assert.Equal(t, GenericErrorReply, reply.Text)
	assert.False(t, reply.Timestamp.IsZero())
	assert.Zero(t, p.calls())
}
