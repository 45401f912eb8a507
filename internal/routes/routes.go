package routes

import (
	"net/http"

	"github.com/01moynul/taptosell-installments/internal/auth"
	"github.com/01moynul/taptosell-installments/internal/handlers"
	"github.com/01moynul/taptosell-installments/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Options configures the router.
type Options struct {
	Tokens        middleware.TokenValidator
	TrustedOrigin string
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.New()

	// CORS must run before anything that can abort.
	router.Use(
		middleware.CORS(opts.TrustedOrigin),
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.RequestLogger(),
	)

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Protected Routes (Token Required) ---
		authed := v1.Group("/")
		authed.Use(middleware.AuthMiddleware(opts.Tokens))
		{
			authed.GET("/installments/:id", h.GetInstallmentRequest)

			// --- Buyer Routes ---
			buyer := authed.Group("/buyer")
			buyer.Use(middleware.RequireRole(auth.RoleBuyer))
			{
				buyer.POST("/installments", h.CreateInstallmentRequest)
				buyer.GET("/installments", h.GetMyInstallmentRequests)
				buyer.POST("/installments/:id/cancel", h.CancelInstallmentRequest)
				buyer.POST("/offers/:id/decision", h.DecideOffer)
				buyer.GET("/credit-profile", h.GetMyCreditProfile)
			}

			// --- Primary Seller Routes ---
			seller := authed.Group("/seller")
			seller.Use(middleware.RequireRole(auth.RoleSeller, auth.RoleManager))
			{
				seller.GET("/installments", h.GetInstallmentRequests)
				seller.POST("/installments/:id/decision", h.RecordSellerDecision)
				seller.POST("/installments/:id/forward", h.ForwardInstallmentRequest)
				seller.POST("/installments/:id/close", h.CloseInstallmentRequest)
			}

			// --- Supplier Routes ---
			supplier := authed.Group("/supplier")
			supplier.Use(middleware.RequireRole(auth.RoleSupplier))
			{
				supplier.GET("/installments", h.GetSupplierInstallmentRequests)
				supplier.POST("/installments/:id/offers", h.SubmitSupplierOffer)
			}

			// --- Manager Routes ---
			manager := authed.Group("/manager")
			manager.Use(middleware.RequireRole(auth.RoleManager))
			{
				manager.GET("/credit-profiles/:buyerId", h.GetBuyerCreditProfile)
				manager.GET("/installments/stats", h.GetInstallmentStats)
				manager.GET("/installments/:id/events", h.GetInstallmentEvents)
				manager.POST("/sweeps", h.RunOverdueSweep)
			}

			// Payments are recorded by back office staff on either side.
			authed.POST("/manager/offers/:id/installments/:installmentId/pay",
				middleware.RequireRole(auth.RoleManager, auth.RoleSeller),
				h.MarkInstallmentPaid,
			)
		}
	}

	return router
}
