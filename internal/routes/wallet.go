package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletsvc/wallet_service/internal/batch"
	"github.com/walletsvc/wallet_service/internal/transfer"
	"github.com/walletsvc/wallet_service/internal/trust"
	"github.com/walletsvc/wallet_service/internal/wallet"
)

// RegisterWalletRoutes wires wallet, reachability and transfer endpoints.
// Batch routes are registered first so their literal paths win over :walletId.
func RegisterWalletRoutes(r fiber.Router, wh *wallet.Handler, th *trust.Handler, xh *transfer.Handler, bh *batch.Handler, batchLimit fiber.Handler) {
	r.Post("/wallets/batch-create-wallet", batchLimit, bh.CreateWallets)
	r.Post("/wallets/batch-transfer", batchLimit, bh.TransferTokens)

	r.Post("/wallets", wh.Create)
	r.Get("/wallets/:walletId", wh.Get)
	r.Patch("/wallets/:walletId", wh.Update)
	r.Delete("/wallets/:walletId", wh.Deactivate)
	r.Get("/wallets/:walletId/balance", wh.Balance)
	r.Get("/wallets/:walletId/wallets", th.ListWallets)
	r.Get("/wallets/:walletId/trust_relationships", th.ListRelationships)
	r.Post("/wallets/:walletId/transfers", xh.Create)
}

// RegisterTrustRoutes wires the trust request workflow.
func RegisterTrustRoutes(r fiber.Router, h *trust.Handler) {
	r.Post("/trust_relationships", h.Create)
	r.Post("/trust_relationships/:id/approve", h.Approve)
	r.Post("/trust_relationships/:id/reject", h.Reject)
	r.Post("/trust_relationships/:id/revoke", h.Revoke)
}
