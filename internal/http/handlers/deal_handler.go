package handlers

import (
	"strconv"
	"time"

	"github.com/dealroom/backend/internal/http/dto"
	"github.com/dealroom/backend/internal/middleware"
	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/dealroom/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DealHandler struct {
	dealService *services.DealService
	ledger      *services.AuditLedger
	log         *zap.Logger
}

func NewDealHandler(dealService *services.DealService, ledger *services.AuditLedger, log *zap.Logger) *DealHandler {
	return &DealHandler{dealService: dealService, ledger: ledger, log: log}
}

func (h *DealHandler) CreateDeal(c *fiber.Ctx) error {
	var req dto.CreateDealRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	deal, err := h.dealService.Create(c.UserContext(), services.CreateDealInput{
		TransactionType:  req.TransactionType,
		PropertyAddress:  req.PropertyAddress,
		PurchasePriceUSD: req.PurchasePriceUSD,
		EMDAmountBTC:     dto.DecimalString(req.EMDAmountBTC),
		DeadlineFunding:  req.DeadlineFunding,
		DeadlineClose:    req.DeadlineClose,
		Jurisdiction:     req.StateJurisdiction,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, deal)
}

func (h *DealHandler) GetDeal(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	deal, err := h.dealService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, deal)
}

func (h *DealHandler) ListDeals(c *fiber.Ctx) error {
	filter := repositories.DealFilter{}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("updated_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "updated_after must be RFC 3339")
		}
		filter.UpdatedAfter = &t
	}

	deals, err := h.dealService.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if deals == nil {
		deals = []models.Deal{}
	}
	return c.JSON(dto.ListResponse{OK: true, Data: deals, Limit: filter.EffectiveLimit(), Offset: filter.Offset})
}

// UpdateDeal is the manual override. It bypasses the trigger table but is
// still audited and never regresses status.
func (h *DealHandler) UpdateDeal(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.UpdateDealRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	deal, err := h.dealService.Override(c.UserContext(), id, services.OverrideDealInput{
		Status:                req.Status,
		PurchasePriceUSD:      req.PurchasePriceUSD,
		EMDAmountUSDAtFunding: req.EMDAmountUSDAtFunding,
		DeadlineFunding:       req.DeadlineFunding,
		DeadlineClose:         req.DeadlineClose,
		Jurisdiction:          req.StateJurisdiction,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, deal)
}

func (h *DealHandler) GetAudit(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	evs, err := h.ledger.History(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if evs == nil {
		evs = []models.AuditEvent{}
	}
	return ok(c, evs)
}

func (h *DealHandler) VerifyAudit(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	replay, err := h.ledger.Replay(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, replay)
}
