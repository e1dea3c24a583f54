package controller

import (
	"meeting-moderator-be/internal/dto"
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/pkg/serverutils"
	"meeting-moderator-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	Realtime(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type webhookController struct {
	webhookService service.IWebhookService
	webhookToken   string
	logger         logger.ILogger
}

func NewWebhookController(webhookService service.IWebhookService, webhookToken string, log logger.ILogger) IWebhookController {
	return &webhookController{
		webhookService: webhookService,
		webhookToken:   webhookToken,
		logger:         log,
	}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/webhooks")
	h.Use(serverutils.WebhookTokenMiddleware(c.webhookToken))
	h.Post("realtime", c.Realtime)
	h.Post("status", c.Status)
}

// Realtime always acknowledges with 200 so the platform does not retry;
// malformed events are logged and dropped.
func (c *webhookController) Realtime(ctx *fiber.Ctx) error {
	var event dto.RealtimeWebhookEvent
	if err := ctx.BodyParser(&event); err != nil {
		c.logger.Warn("webhook", "unparseable realtime payload", map[string]interface{}{
			"error": err.Error(),
		})
		return ctx.SendStatus(fiber.StatusOK)
	}

	c.webhookService.HandleRealtimeEvent(ctx.Context(), event)
	return ctx.SendStatus(fiber.StatusOK)
}

func (c *webhookController) Status(ctx *fiber.Ctx) error {
	var event dto.StatusWebhookEvent
	if err := ctx.BodyParser(&event); err != nil {
		c.logger.Warn("webhook", "unparseable status payload", map[string]interface{}{
			"error": err.Error(),
		})
		return ctx.SendStatus(fiber.StatusOK)
	}

	c.webhookService.HandleStatusEvent(ctx.Context(), event)
	return ctx.SendStatus(fiber.StatusOK)
}
