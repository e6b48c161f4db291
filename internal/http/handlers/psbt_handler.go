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

type PSBTHandler struct {
	signingService *services.SigningService
	log            *zap.Logger
}

func NewPSBTHandler(signingService *services.SigningService, log *zap.Logger) *PSBTHandler {
	return &PSBTHandler{signingService: signingService, log: log}
}

func (h *PSBTHandler) CreateSession(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.CreatePSBTRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	session, err := h.signingService.CreateSession(c.UserContext(), dealID, services.CreateSessionInput{
		Type:             req.Type,
		PSBTBase64:       req.PSBTBase64,
		CreatedByPartyID: req.CreatedByPartyID,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, session)
}

func (h *PSBTHandler) ListSessions(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	sessions, err := h.signingService.Sessions(c.UserContext(), dealID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if sessions == nil {
		sessions = []models.PSBTSession{}
	}
	return ok(c, sessions)
}

func (h *PSBTHandler) GetSession(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid psbt session id")
	}

	session, err := h.signingService.Session(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, session)
}

func (h *PSBTHandler) RequestSignature(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid psbt session id")
	}
	var req dto.RequestSignatureRequest
	if err := c.BodyParser(&req); err != nil || req.PartyID == uuid.Nil {
		return fail(c, fiber.StatusBadRequest, "party_id is required")
	}

	sig, err := h.signingService.RequestSignature(c.UserContext(), id, req.PartyID, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, sig)
}

func (h *PSBTHandler) SubmitSignature(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid psbt session id")
	}
	var req dto.SubmitSignatureRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}
	if req.PartyID == uuid.Nil {
		if actor := middleware.GetPartyID(c); actor != nil {
			req.PartyID = *actor
		} else {
			return fail(c, fiber.StatusBadRequest, "party_id is required")
		}
	}

	sig, err := h.signingService.SubmitSignature(c.UserContext(), id, req.PartyID, req.SignedPSBTBase64)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, sig)
}

func (h *PSBTHandler) Finalize(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid psbt session id")
	}
	var req dto.FinalizePSBTRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request")
		}
	}

	session, err := h.signingService.Finalize(c.UserContext(), id, req.BroadcastTxID, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, session)
}
