package api

import (
	"auticare/types"

	"github.com/gofiber/fiber/v2"
)

type CheckHandler struct{}

func NewCheckHandler() *CheckHandler {
	return &CheckHandler{}
}

// HandleHealthy always reports ready: both bots answer even without model
// access.
func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(types.HealthResponse{
		Status:         "healthy",
		Message:        "Auticare chatbot API is running",
		DoctorChatbot:  "ready",
		PatientChatbot: "ready",
	})
}
