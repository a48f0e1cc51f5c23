package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/config"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/http/middleware"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/handler"
)

// Handlers все HTTP обработчики приложения.
type Handlers struct {
	Proposal  *handler.ProposalHandler
	Deal      *handler.DealHandler
	Milestone *handler.MilestoneHandler
	Dispute   *handler.DisputeHandler
	Wallet    *handler.WalletHandler
	File      *handler.FileHandler
	Webhook   *handler.WebhookHandler
	WS        *handler.WSHandler
	Health    *handler.HealthHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessParser) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if cfg.FileStoreDriver == config.FileStoreLocal {
		r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))
	}

	// Провайдер платежей приходит без JWT, подлинность проверяется подписью.
	r.POST("/webhooks/payments",
		middleware.RateLimitMiddleware(cfg.WebhookRateLimit, cfg.RateLimitPeriod, middleware.ByClientIP),
		h.Webhook.HandlePayments)

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod, middleware.ByClientIP))

	api.GET("/fees/quote", handler.QuoteFee)
	api.GET("/ws", h.WS.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.POST("/proposals", h.Proposal.CreateProposal)
		protected.GET("/proposals", h.Proposal.ListMyProposals)
		protected.GET("/proposals/:id", middleware.UUIDValidator("id"), h.Proposal.GetProposal)
		protected.PATCH("/proposals/:id/status", middleware.UUIDValidator("id"), h.Proposal.UpdateProposalStatus)

		protected.GET("/deals", h.Deal.ListMyDeals)
		protected.GET("/deals/:id", middleware.UUIDValidator("id"), h.Deal.GetDeal)
		protected.GET("/deals/:id/transactions", middleware.UUIDValidator("id"), h.Deal.ListTransactions)
		protected.POST("/deals/:id/fund", middleware.UUIDValidator("id"), h.Deal.FundDeal)

		milestones := protected.Group("/deals/:id/milestones/:index", middleware.UUIDValidator("id"))
		{
			milestones.POST("/submit", h.Milestone.Submit)
			milestones.POST("/revision", h.Milestone.RequestRevision)
			milestones.POST("/approve", h.Milestone.Approve)
			milestones.DELETE("/countdown", h.Milestone.CancelCountdown)
		}

		protected.POST("/deals/:id/disputes", middleware.UUIDValidator("id"), h.Dispute.OpenDispute)
		protected.GET("/deals/:id/disputes", middleware.UUIDValidator("id"), h.Dispute.ListForDeal)
		protected.GET("/disputes", h.Dispute.ListMine)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), h.Dispute.GetDispute)

		protected.GET("/wallet/balance", h.Wallet.GetBalance)
		protected.GET("/wallet/transactions", h.Wallet.ListTransactions)

		protected.POST("/files", h.File.Upload)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokens), middleware.RequireRole(entity.RoleAdmin))
	{
		admin.GET("/disputes", h.Dispute.ListOpen)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), h.Dispute.ResolveDispute)
	}

	return r
}
