package bot

import (
	"fmt"
	"strings"

	"auticare/types"
)

const (
	historyEntryMax = 1200
	questionMax     = 2000
)

const DoctorSystemPrompt = `You are an autism specialist assistant for doctors. Answer briefly and precisely.
Scope: autism and related developmental conditions only. If a question is unrelated, say so in one sentence and steer back to autism care.
Tone: concise, clinical and empathetic. Do not describe autism as something to be cured; frame support around skills, communication and wellbeing.
Remind the doctor that treatment decisions rest with the treating clinician when you make recommendations.`

const DoctorInstructions = `INSTRUCTIONS:
- Give SHORT, DIRECT answers - maximum 3-4 sentences
- Don't repeat information already provided
- When user says "that patient", "him/her", "they" - refer to previously mentioned patients
- Only mention previous conversation if directly relevant
- Don't over-explain or be repetitive
- Answer exactly what was asked
- Provide medical insights and treatment recommendations based on patient data

RESPONSE (keep it brief and focused):`

const PatientSystemPrompt = `You are Autism Awareness Assistant, an Autism Advisor: warm, concise, and evidence-informed.
Goals: explain autism clearly, suggest practical next steps, and point to resources.

Style:
- Friendly and encouraging.
- Keep answers short; use bullet points when helpful.
- If user greets you, reply briefly with 3 suggested follow-ups.

Scope:
- Early signs, diagnosis, therapies, school/home support, resources.
- If a question is not about autism, say so kindly and offer an autism topic instead.
- Autism is not an illness to cure; talk about support and strengths.

Use concise, evidence-informed guidance. If you lack specific details, say so briefly.`

const patientNotFoundNote = "No matching patient record was found. Say so briefly and answer from general knowledge."

// Assembler builds the message list for one gateway call.
type Assembler struct {
	System       string
	Instructions string
	// HistoryMessages is the number of most recent history messages kept.
	HistoryMessages int
	// TokenBudget drops the oldest history until Count fits. Zero disables it.
	TokenBudget int
	Count       func([]types.Message) int
}

type Input struct {
	Query          string
	Category       types.Category
	PatientContext string
	Knowledge      []string
	History        []types.Message
}

func (a Assembler) Assemble(in Input) []types.Message {
	history := a.window(in.History)
	system := types.Message{Role: types.RoleSystem, Content: a.System}
	final := types.Message{Role: types.RoleUser, Content: a.final(in)}

	build := func(h []types.Message) []types.Message {
		out := make([]types.Message, 0, len(h)+2)
		out = append(out, system)
		out = append(out, h...)
		return append(out, final)
	}

	msgs := build(history)
	if a.TokenBudget > 0 && a.Count != nil {
		for len(history) > 0 && a.Count(msgs) > a.TokenBudget {
			history = history[1:]
			msgs = build(history)
		}
	}
	return msgs
}

func (a Assembler) window(history []types.Message) []types.Message {
	var kept []types.Message
	for _, m := range history {
		if m.Role == types.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		kept = append(kept, m)
	}
	if a.HistoryMessages >= 0 && len(kept) > a.HistoryMessages {
		kept = kept[len(kept)-a.HistoryMessages:]
	}
	out := make([]types.Message, len(kept))
	for i, m := range kept {
		out[i] = types.Message{Role: m.Role, Content: Truncate(m.Content, historyEntryMax)}
	}
	return out
}

func (a Assembler) final(in Input) string {
	question := Truncate(in.Query, questionMax)

	var parts []string
	if in.PatientContext != "" {
		parts = append(parts, "CURRENT PATIENT DATA:\n"+in.PatientContext)
	}
	if len(in.Knowledge) > 0 {
		parts = append(parts, "MEDICAL KNOWLEDGE FROM PDF:\n"+FormatKnowledge(in.Knowledge))
	}
	if in.Category == types.CategoryPatientRelated && in.PatientContext == "" {
		parts = append(parts, patientNotFoundNote)
	}
	if len(parts) == 0 {
		return question
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(parts, "\n\n"))
	sb.WriteString("\n\nCURRENT USER QUESTION: ")
	sb.WriteString(question)
	if a.Instructions != "" {
		sb.WriteString("\n\n")
		sb.WriteString(a.Instructions)
	}
	return sb.String()
}

// FormatKnowledge numbers the retrieved references.
func FormatKnowledge(refs []string) string {
	var sb strings.Builder
	sb.WriteString("RELEVANT MEDICAL KNOWLEDGE FROM PDF:\n\n")
	for i, r := range refs {
		fmt.Fprintf(&sb, "Reference %d:\n%s\n\n", i+1, r)
	}
	return sb.String()
}

// Truncate cuts s to n characters and marks the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
