package controller

import (
	"meeting-moderator-be/internal/dto"
	"meeting-moderator-be/internal/pkg/serverutils"
	"meeting-moderator-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IMeetingController interface {
	RegisterRoutes(r fiber.Router)
	StartBot(ctx *fiber.Ctx) error
	SetAgenda(ctx *fiber.Ctx) error
	GetAgendaStatus(ctx *fiber.Ctx) error
	GetTopic(ctx *fiber.Ctx) error
	GetTranscript(ctx *fiber.Ctx) error
	GetSummary(ctx *fiber.Ctx) error
	Ask(ctx *fiber.Ctx) error
	Leave(ctx *fiber.Ctx) error
	ListTranscripts(ctx *fiber.Ctx) error
}

type meetingController struct {
	meetingService service.IMeetingService
}

func NewMeetingController(meetingService service.IMeetingService) IMeetingController {
	return &meetingController{
		meetingService: meetingService,
	}
}

func (c *meetingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/meetings/v1")
	h.Post("", c.StartBot)
	h.Get("transcripts", c.ListTranscripts)
	h.Put(":id/agenda", c.SetAgenda)
	h.Get(":id/status", c.GetAgendaStatus)
	h.Get(":id/topic", c.GetTopic)
	h.Get(":id/transcript", c.GetTranscript)
	h.Get(":id/summary", c.GetSummary)
	h.Post(":id/ask", c.Ask)
	h.Post(":id/leave", c.Leave)
}

func (c *meetingController) StartBot(ctx *fiber.Ctx) error {
	var req dto.StartMeetingBotRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.meetingService.StartBot(ctx.Context(), req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Bot is joining the meeting", res))
}

func (c *meetingController) SetAgenda(ctx *fiber.Ctx) error {
	var req dto.SetAgendaRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.meetingService.SetAgenda(ctx.Params("id"), req.Agenda)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Agenda updated", res))
}

func (c *meetingController) GetAgendaStatus(ctx *fiber.Ctx) error {
	res, err := c.meetingService.GetStatus(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get status", res))
}

func (c *meetingController) GetTopic(ctx *fiber.Ctx) error {
	res, err := c.meetingService.GetTopic(ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get topic", res))
}

func (c *meetingController) GetTranscript(ctx *fiber.Ctx) error {
	res, err := c.meetingService.GetTranscript(ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get transcript", res))
}

func (c *meetingController) GetSummary(ctx *fiber.Ctx) error {
	res, err := c.meetingService.GetSummary(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get summary", res))
}

func (c *meetingController) Ask(ctx *fiber.Ctx) error {
	var req dto.QARequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.meetingService.Ask(ctx.Context(), ctx.Params("id"), req.Question)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success answer question", res))
}

func (c *meetingController) Leave(ctx *fiber.Ctx) error {
	if err := c.meetingService.Leave(ctx.Context(), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Bot is leaving the meeting", fiber.Map{
		"meeting_id": ctx.Params("id"),
	}))
}

func (c *meetingController) ListTranscripts(ctx *fiber.Ctx) error {
	res, err := c.meetingService.ListTranscripts()
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list transcripts", res))
}
