package http

import (
	"time"

	"github.com/dealroom/backend/internal/config"
	"github.com/dealroom/backend/internal/http/handlers"
	"github.com/dealroom/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Deal      *handlers.DealHandler
	Party     *handlers.PartyHandler
	PoF       *handlers.PoFHandler
	Escrow    *handlers.EscrowHandler
	PSBT      *handlers.PSBTHandler
	Checklist *handlers.ChecklistHandler
	Records   *handlers.RecordsHandler
	WS        *handlers.WSHub
}

// SetupRouter mounts the deal room API. rdb may be nil, in which case no rate
// limit is applied.
func SetupRouter(app *fiber.App, cfg *config.Config, log *zap.Logger, rdb *redis.Client, h Handlers) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	if rdb != nil {
		api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log))
	}
	api.Use(middleware.AuthMiddleware(cfg, log))

	// Deals
	api.Post("/deals", h.Deal.CreateDeal)
	api.Get("/deals", h.Deal.ListDeals)
	api.Get("/deals/:id", h.Deal.GetDeal)
	api.Patch("/deals/:id", h.Deal.UpdateDeal)
	api.Get("/deals/:id/audit", h.Deal.GetAudit)
	api.Get("/deals/:id/audit/verify", h.Deal.VerifyAudit)

	// Parties
	api.Post("/deals/:id/parties", h.Party.InviteParty)
	api.Get("/deals/:id/parties", h.Party.ListParties)
	api.Patch("/parties/:id", h.Party.AttachWallet)

	// Proof of funds
	api.Post("/deals/:id/pof/request", h.PoF.RequestProof)
	api.Post("/deals/:id/pof/attest", h.PoF.Attest)
	api.Post("/deals/:id/pof/verify", h.PoF.Verify)
	api.Get("/deals/:id/pof/packet", h.PoF.Packet)

	// Escrow
	api.Post("/deals/:id/escrow/policy", h.Escrow.CreatePolicy)
	api.Get("/deals/:id/escrow", h.Escrow.GetPolicy)
	api.Post("/deals/:id/escrow/funding", h.Escrow.RecordFunding)
	api.Get("/deals/:id/escrow/receipt", h.Escrow.Receipt)

	// Signing sessions
	api.Post("/deals/:id/psbt", h.PSBT.CreateSession)
	api.Get("/deals/:id/psbt", h.PSBT.ListSessions)
	api.Get("/psbt/:id", h.PSBT.GetSession)
	api.Post("/psbt/:id/request-signature", h.PSBT.RequestSignature)
	api.Post("/psbt/:id/submit-signature", h.PSBT.SubmitSignature)
	api.Post("/psbt/:id/finalize", h.PSBT.Finalize)

	// Contingencies and milestones
	api.Post("/deals/:id/contingencies", h.Checklist.AddContingency)
	api.Get("/deals/:id/contingencies", h.Checklist.ListContingencies)
	api.Patch("/contingencies/:id", h.Checklist.UpdateContingency)
	api.Post("/deals/:id/milestones", h.Checklist.AddMilestone)
	api.Get("/deals/:id/milestones", h.Checklist.ListMilestones)
	api.Post("/deals/:id/milestones/defaults", h.Checklist.SeedMilestones)
	api.Patch("/milestones/:id", h.Checklist.UpdateMilestone)

	// Documents, funds, disbursements
	api.Post("/deals/:id/documents", h.Records.UploadDocument)
	api.Get("/deals/:id/documents", h.Records.ListDocuments)
	api.Patch("/documents/:id", h.Records.UpdateDocument)
	api.Post("/deals/:id/funds", h.Records.AddFund)
	api.Get("/deals/:id/funds", h.Records.ListFunds)
	api.Patch("/funds/:id", h.Records.UpdateFund)
	api.Post("/deals/:id/disbursements", h.Records.AddDisbursement)
	api.Get("/deals/:id/disbursements", h.Records.ListDisbursements)
	api.Post("/disbursements/:id/pay", h.Records.PayDisbursement)

	// WebSocket
	if h.WS != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(h.WS.HandleWS))
	}
}
