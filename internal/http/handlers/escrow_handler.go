package handlers

import (
	"github.com/dealroom/backend/internal/http/dto"
	"github.com/dealroom/backend/internal/middleware"
	"github.com/dealroom/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
	log           *zap.Logger
}

func NewEscrowHandler(escrowService *services.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService, log: log}
}

func (h *EscrowHandler) CreatePolicy(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.EscrowPolicyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request")
		}
	}

	policy, err := h.escrowService.CreatePolicy(c.UserContext(), dealID, services.CreatePolicyInput{
		Descriptor:     req.Descriptor,
		Address:        req.Address,
		RefundTimelock: req.RefundTimelock,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, policy)
}

func (h *EscrowHandler) GetPolicy(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	policy, err := h.escrowService.Policy(c.UserContext(), dealID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, policy)
}

func (h *EscrowHandler) RecordFunding(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.EscrowFundingRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	funding, err := h.escrowService.RecordFunding(c.UserContext(), dealID, services.RecordFundingInput{
		TxID:          req.TxID,
		AmountBTC:     req.AmountBTC.String(),
		Confirmations: req.Confirmations,
		FundedAt:      req.FundedAt,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, funding)
}

func (h *EscrowHandler) Receipt(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	receipt, err := h.escrowService.Receipt(c.UserContext(), dealID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, receipt)
}
