package handlers

import (
	"github.com/dealroom/backend/internal/http/dto"
	"github.com/dealroom/backend/internal/middleware"
	"github.com/dealroom/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PoFHandler struct {
	pofService *services.PoFService
	log        *zap.Logger
}

func NewPoFHandler(pofService *services.PoFService, log *zap.Logger) *PoFHandler {
	return &PoFHandler{pofService: pofService, log: log}
}

func (h *PoFHandler) RequestProof(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.PoFRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	pr, err := h.pofService.RequestProof(c.UserContext(), dealID, services.RequestProofInput{
		RequesterName:      req.RequesterName,
		RequestedAmountBTC: req.RequestedAmountBTC.String(),
		RequestedAmountUSD: req.RequestedAmountUSD,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, pr)
}

func (h *PoFHandler) Attest(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.PoFAttestRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}
	if req.PartyID == uuid.Nil {
		// A bearer token stands in for the body field.
		if actor := middleware.GetPartyID(c); actor != nil {
			req.PartyID = *actor
		} else {
			return fail(c, fiber.StatusBadRequest, "party_id is required")
		}
	}

	att, err := h.pofService.Attest(c.UserContext(), dealID, services.AttestInput{
		PartyID:             req.PartyID,
		ProofType:           req.ProofType,
		AddressOrDescriptor: req.AddressOrDescriptor,
		Signature:           req.Signature,
		ClaimedTotalBTC:     dto.DecimalString(req.UTXOsTotalBTC),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, att)
}

func (h *PoFHandler) Verify(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	att, err := h.pofService.Verify(c.UserContext(), dealID, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, att)
}

func (h *PoFHandler) Packet(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	packet, err := h.pofService.Packet(c.UserContext(), dealID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, packet)
}
