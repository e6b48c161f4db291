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

// RecordsHandler serves documents, fund lines and disbursements.
type RecordsHandler struct {
	recordsService *services.RecordsService
	log            *zap.Logger
}

func NewRecordsHandler(recordsService *services.RecordsService, log *zap.Logger) *RecordsHandler {
	return &RecordsHandler{recordsService: recordsService, log: log}
}

func (h *RecordsHandler) UploadDocument(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.UploadDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	doc, err := h.recordsService.UploadDocument(c.UserContext(), dealID, services.UploadDocumentInput{
		Type:               req.Type,
		Name:               req.Name,
		FileURL:            req.FileURL,
		FileHash:           req.FileHash,
		RequiresSignatures: req.RequiresSignatures,
		UploadedByPartyID:  req.UploadedByPartyID,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, doc)
}

func (h *RecordsHandler) ListDocuments(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	docs, err := h.recordsService.ListDocuments(c.UserContext(), dealID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return ok(c, docs)
}

func (h *RecordsHandler) UpdateDocument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid document id")
	}
	var req dto.UpdateDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	doc, err := h.recordsService.UpdateDocument(c.UserContext(), id, services.UpdateDocumentInput{
		Status:   req.Status,
		FileURL:  req.FileURL,
		FileHash: req.FileHash,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, doc)
}

func (h *RecordsHandler) AddFund(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.CreateFundRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	fund, err := h.recordsService.AddFund(c.UserContext(), dealID, services.AddFundInput{
		Type:           req.Type,
		Description:    req.Description,
		AmountBTC:      dto.DecimalString(req.AmountBTC),
		AmountUSD:      req.AmountUSD,
		EscrowPolicyID: req.EscrowPolicyID,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, fund)
}

func (h *RecordsHandler) ListFunds(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	funds, err := h.recordsService.ListFunds(c.UserContext(), dealID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if funds == nil {
		funds = []models.Fund{}
	}
	return ok(c, funds)
}

func (h *RecordsHandler) UpdateFund(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid fund id")
	}
	var req dto.UpdateFundRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	fund, err := h.recordsService.UpdateFund(c.UserContext(), id, services.UpdateFundInput{
		Status:       req.Status,
		FundedTxID:   req.FundedTxID,
		ReleasedTxID: req.ReleasedTxID,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, fund)
}

func (h *RecordsHandler) AddDisbursement(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}
	var req dto.CreateDisbursementRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	d, err := h.recordsService.AddDisbursement(c.UserContext(), dealID, services.AddDisbursementInput{
		PayeeName:   req.PayeeName,
		PayeeType:   req.PayeeType,
		AmountUSD:   req.AmountUSD,
		AmountBTC:   dto.DecimalString(req.AmountBTC),
		Description: req.Description,
		BTCAddress:  req.BTCAddress,
	}, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, d)
}

func (h *RecordsHandler) ListDisbursements(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid deal id")
	}

	list, err := h.recordsService.ListDisbursements(c.UserContext(), dealID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if list == nil {
		list = []models.Disbursement{}
	}
	return ok(c, list)
}

func (h *RecordsHandler) PayDisbursement(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid disbursement id")
	}
	var req dto.PayDisbursementRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request")
	}

	d, err := h.recordsService.PayDisbursement(c.UserContext(), id, req.PaidTxID, middleware.GetPartyID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, d)
}
