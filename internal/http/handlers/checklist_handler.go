package handlers

import (
	"github.com/dealroom/backend/internal/http/dto"
	"github.com/dealroom/backend/internal/middleware"
	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChecklistHandler serves contingencies and closing milestones.
type ChecklistHandler struct {
	contingencyService *services.ContingencyService
	milestoneService   *services.MilestoneService
	log                *zap.Logger
}

func NewChecklistHandler(contingencyService *services.ContingencyService, milestoneService *services.MilestoneService, log *zap.Logger) *ChecklistHandler {
	return &ChecklistHandler{contingencyService: contingencyService, milestoneService: milestoneService, log: log}
}

func (h *ChecklistHandler) AddContingency(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.CreateContingencyRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	cont, err := h.contingencyService.Add(c.UserContext(), dealID, services.AddContingencyInput{
		Type:     req.Type,
		Deadline: req.Deadline,
		Notes:    req.Notes,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, cont)
}

func (h *ChecklistHandler) ListContingencies(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	list, err := h.contingencyService.List(c.UserContext(), dealID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if list == nil {
		list = []models.Contingency{}
	}
	return ok(c, list)
}

func (h *ChecklistHandler) UpdateContingency(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid contingency id")
	}
	var req dto.UpdateContingencyRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	cont, err := h.contingencyService.Update(c.UserContext(), id, services.UpdateContingencyInput{
		Status:          req.Status,
		Deadline:        req.Deadline,
		Notes:           req.Notes,
		WaivedByPartyID: req.WaivedByPartyID,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, cont)
}

func (h *ChecklistHandler) AddMilestone(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.CreateMilestoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	m, err := h.milestoneService.Add(c.UserContext(), dealID, services.AddMilestoneInput{
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
		IsRequired:  req.IsRequired,
		OrderIndex:  req.OrderIndex,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, m)
}

func (h *ChecklistHandler) ListMilestones(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	list, err := h.milestoneService.List(c.UserContext(), dealID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if list == nil {
		list = []models.Milestone{}
	}
	return ok(c, list)
}

func (h *ChecklistHandler) SeedMilestones(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	list, err := h.milestoneService.SeedDefaults(c.UserContext(), dealID, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, list)
}

func (h *ChecklistHandler) UpdateMilestone(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid milestone id")
	}
	var req dto.UpdateMilestoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	m, err := h.milestoneService.Update(c.UserContext(), id, services.UpdateMilestoneInput{
		Name:               req.Name,
		Description:        req.Description,
		DueDate:            req.DueDate,
		Completed:          req.Completed,
		CompletedByPartyID: req.CompletedByPartyID,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, m)
}
