package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func validateStruct(s any) map[string]string {
	if err := validate.Struct(s); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

// HistoryItem accepts both {role, content} and {user, assistant} shapes.
type HistoryItem struct {
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	User      string `json:"user,omitempty"`
	Assistant string `json:"assistant,omitempty"`
}

// Messages normalizes the item into tagged messages. A {user, assistant}
// pair yields two messages; unknown roles are treated as user.
func (h HistoryItem) Messages() []Message {
	if h.Role == "" && h.Content == "" {
		var out []Message
		if strings.TrimSpace(h.User) != "" {
			out = append(out, Message{Role: RoleUser, Content: h.User})
		}
		if strings.TrimSpace(h.Assistant) != "" {
			out = append(out, Message{Role: RoleAssistant, Content: h.Assistant})
		}
		return out
	}
	if strings.TrimSpace(h.Content) == "" {
		return nil
	}
	return []Message{{Role: normalizeRole(h.Role), Content: h.Content}}
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "bot", "model", "ai":
		return RoleAssistant
	case "system":
		return RoleSystem
	default:
		return RoleUser
	}
}

type ChatParams struct {
	Message string        `json:"message" validate:"required,max=20000"`
	History []HistoryItem `json:"history" validate:"max=100"`
}

func (params *ChatParams) Validate() map[string]string {
	params.Message = strings.TrimSpace(params.Message)
	return validateStruct(params)
}

func (params *ChatParams) Messages() []Message {
	out := make([]Message, 0, len(params.History))
	for _, h := range params.History {
		out = append(out, h.Messages()...)
	}
	return out
}

type PatientSearchParams struct {
	Query string `query:"q" validate:"required"`
	K     int    `query:"k" validate:"omitempty,min=1,max=20"`
}

func (params *PatientSearchParams) Validate() map[string]string {
	params.Query = strings.TrimSpace(params.Query)
	return validateStruct(params)
}

type ChatResponse struct {
	Success   bool       `json:"success"`
	Response  string     `json:"response"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type MemoryResponse struct {
	Success bool   `json:"success"`
	Memory  string `json:"memory"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	DoctorChatbot  string `json:"doctor_chatbot"`
	PatientChatbot string `json:"patient_chatbot"`
}

type PatientSearchResponse struct {
	Success bool     `json:"success"`
	Query   string   `json:"query"`
	Results []string `json:"results"`
}

type ProviderInfo struct {
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

type ProvidersResponse struct {
	Success bool                      `json:"success"`
	Bots    map[string][]ProviderInfo `json:"bots"`
}
