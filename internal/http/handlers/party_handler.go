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

type PartyHandler struct {
	partyService *services.PartyService
	log          *zap.Logger
}

func NewPartyHandler(partyService *services.PartyService, log *zap.Logger) *PartyHandler {
	return &PartyHandler{partyService: partyService, log: log}
}

func (h *PartyHandler) InviteParty(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.InvitePartyRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	party, err := h.partyService.Invite(c.UserContext(), dealID, services.InvitePartyInput{
		Role:             req.Role,
		DisplayName:      req.DisplayName,
		Email:            req.Email,
		Phone:            req.Phone,
		CompanyName:      req.CompanyName,
		LicenseNumber:    req.LicenseNumber,
		SigningAuthority: req.SigningAuthority,
		WalletDescriptor: req.WalletDescriptor,
		PubKey:           req.PubKey,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, party)
}

func (h *PartyHandler) ListParties(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	parties, err := h.partyService.List(c.UserContext(), dealID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if parties == nil {
		parties = []models.Party{}
	}
	return ok(c, parties)
}

func (h *PartyHandler) AttachWallet(c *fiber.Ctx) error {
	partyID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid party id")
	}
	var req dto.AttachWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	party, err := h.partyService.AttachWallet(c.UserContext(), partyID, req.WalletDescriptor, req.PubKey, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, party)
}
