package api

import (
	"context"
	"errors"

	"auticare/app/bot"
	"auticare/types"

	"github.com/gofiber/fiber/v2"
)

type DoctorBot interface {
	Chat(ctx context.Context, message string) (bot.Reply, error)
	Memory() string
	ClearMemory(ctx context.Context) string
}

type PatientBot interface {
	Chat(ctx context.Context, message string, history []types.Message) (bot.Reply, error)
}

type ChatHandler struct {
	doctor  DoctorBot
	patient PatientBot
}

func NewChatHandler(doctor DoctorBot, patient PatientBot) *ChatHandler {
	return &ChatHandler{
		doctor:  doctor,
		patient: patient,
	}
}

func parseChat(c *fiber.Ctx) (*types.ChatParams, error) {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return nil, ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		if errs["Message"] == "failed on 'required' tag" {
			return nil, ErrEmptyMessage()
		}
		return nil, NewValidationError(errs)
	}
	return &params, nil
}

func chatError(err error) error {
	if errors.Is(err, bot.ErrEmptyMessage) {
		return ErrEmptyMessage()
	}
	return err
}

func (h *ChatHandler) HandleDoctorChat(c *fiber.Ctx) error {
	params, err := parseChat(c)
	if err != nil {
		return err
	}
	reply, err := h.doctor.Chat(c.UserContext(), params.Message)
	if err != nil {
		return chatError(err)
	}
	ts := reply.Timestamp
	return c.JSON(types.ChatResponse{Success: true, Response: reply.Text, Timestamp: &ts})
}

// HandlePatientChat serves both the patient and the general user routes.
func (h *ChatHandler) HandlePatientChat(c *fiber.Ctx) error {
	params, err := parseChat(c)
	if err != nil {
		return err
	}
	reply, err := h.patient.Chat(c.UserContext(), params.Message, params.Messages())
	if err != nil {
		return chatError(err)
	}
	return c.JSON(types.ChatResponse{Success: true, Response: reply.Text})
}

func (h *ChatHandler) HandleDoctorMemory(c *fiber.Ctx) error {
	return c.JSON(types.MemoryResponse{Success: true, Memory: h.doctor.Memory()})
}

func (h *ChatHandler) HandleDoctorClearMemory(c *fiber.Ctx) error {
	return c.JSON(types.MessageResponse{Success: true, Message: h.doctor.ClearMemory(c.UserContext())})
}
