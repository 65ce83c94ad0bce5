package transfer

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/walletsvc/wallet_service/internal/middleware"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	ToWalletID string `json:"to_wallet_id"`
	Amount     int64  `json:"amount"`
	ClientTxID string `json:"client_tx_id"`
}

// Create moves tokens out of :walletId on behalf of the acting wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Transfer(c.UserContext(), Input{
		FromWalletID:   c.Params("walletId"),
		ToWalletID:     req.ToWalletID,
		Amount:         req.Amount,
		ClientTxID:     req.ClientTxID,
		ActingWalletID: middleware.WalletID(c),
	})
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"from_balance":   res.FromBalance,
		"to_balance":     res.ToBalance,
		"completed_at":   res.CompletedAt,
	})
}
