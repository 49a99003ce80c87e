package types

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryGreeting         Category = "greeting"
	CategoryPatientRelated   Category = "patient_related"
	CategoryGeneralKnowledge Category = "general_knowledge"
)

type ClassifiedQuery struct {
	Text     string
	Category Category
}

// Record is one row of the patient table. Immutable after load.
type Record struct {
	ID         string
	Name       string
	Gender     string
	Notes      string // clinical notes, CSV column patient_data
	Suggestion string
}

func (r Record) Attributes() map[string]string {
	return map[string]string{
		"gender":     r.Gender,
		"notes":      r.Notes,
		"suggestion": r.Suggestion,
	}
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is one completed exchange kept in conversation memory.
type Turn struct {
	ID        uuid.UUID `json:"id"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

func (t Turn) Messages() []Message {
	return []Message{
		{Role: RoleUser, Content: t.User},
		{Role: RoleAssistant, Content: t.Assistant},
	}
}

// Item is a unit of text handed to a retrieval index.
type Item struct {
	Text     string
	Metadata map[string]string
}

type KnowledgeChunk struct {
	Text   string
	Source string
	Page   int
	Chunk  int
}

func (c KnowledgeChunk) Item() Item {
	return Item{
		Text: c.Text,
		Metadata: map[string]string{
			"source": c.Source,
			"page":   strconv.Itoa(c.Page),
			"chunk":  strconv.Itoa(c.Chunk),
		},
	}
}

type Chunk struct {
	ID        uuid.UUID
	DocID     uuid.UUID
	Corpus    string
	Position  int
	Content   string
	Metadata  map[string]string
	Embedding []float32
	Distance  float64
}

type Document struct {
	ID         uuid.UUID
	Title      string
	Chunks     []Chunk
	Source     string
	SourcePath string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int
}

type LoaderConfig struct {
	MonitoringTime time.Duration
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	ChunkSize      int
	MinChunkSize   int
	CropTop        float64
	CropBottom     float64
}
