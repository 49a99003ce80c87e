package api

import (
	"auticare/types"

	"github.com/gofiber/fiber/v2"
)

// Describer reports a gateway's provider/model chain.
type Describer interface {
	Describe() []types.ProviderInfo
}

// ConfigHandler exposes the runtime LLM routing of each bot. Keys never
// leave the process; only provider and model names are listed.
type ConfigHandler struct {
	gateways map[string]Describer
}

func NewConfigHandler(gateways map[string]Describer) *ConfigHandler {
	return &ConfigHandler{
		gateways: gateways,
	}
}

func (h *ConfigHandler) HandleProviders(c *fiber.Ctx) error {
	bots := make(map[string][]types.ProviderInfo, len(h.gateways))
	for name, g := range h.gateways {
		info := g.Describe()
		if info == nil {
			info = []types.ProviderInfo{}
		}
		bots[name] = info
	}
	return c.JSON(types.ProvidersResponse{Success: true, Bots: bots})
}
