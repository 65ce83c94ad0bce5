package batch

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/middleware"
)

// Handler exposes the batch upload endpoints.
type Handler struct {
	pipeline  *Pipeline
	uploadDir string
}

// NewHandler builds a batch handler storing uploads under uploadDir.
func NewHandler(pipeline *Pipeline, uploadDir string) *Handler {
	return &Handler{pipeline: pipeline, uploadDir: uploadDir}
}

// CreateWallets handles POST /wallets/batch-create-wallet.
func (h *Handler) CreateWallets(c *fiber.Ctx) error {
	in, err := h.input(c)
	if err != nil {
		return err
	}
	res, err := h.pipeline.CreateWallets(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(res)
}

// TransferTokens handles POST /wallets/batch-transfer.
func (h *Handler) TransferTokens(c *fiber.Ctx) error {
	in, err := h.input(c)
	if err != nil {
		return err
	}
	res, err := h.pipeline.TransferTokens(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(res)
}

// input stores the uploaded file and collects the form fields. The file is
// parsed by the pipeline so parse failures surface as PipelineError.
func (h *Handler) input(c *fiber.Ctx) (Input, error) {
	file, err := c.FormFile("csv")
	if err != nil {
		return Input{}, domain.NewValidationError("csv", "file is required")
	}

	def := decimal.Zero
	if raw := strings.TrimSpace(c.FormValue("token_transfer_amount_default")); raw != "" {
		def, err = decimal.NewFromString(raw)
		if err != nil {
			return Input{}, domain.NewValidationError("token_transfer_amount_default", "must be a number")
		}
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		return Input{}, fiber.NewError(http.StatusInternalServerError, "upload storage unavailable")
	}
	batchID := uuid.NewString()
	path := filepath.Join(h.uploadDir, batchID+".csv")
	if err := c.SaveFile(file, path); err != nil {
		return Input{}, fiber.NewError(http.StatusInternalServerError, "failed to store upload")
	}

	in := Input{
		DefaultAmount:  def,
		FilePath:       path,
		ActingWalletID: middleware.WalletID(c),
		BatchID:        batchID,
	}
	sender := strings.TrimSpace(c.FormValue("sender_wallet"))
	if _, err := uuid.Parse(sender); err == nil {
		in.SenderWalletID = sender
	} else {
		in.SenderWalletName = sender
	}
	if id := strings.TrimSpace(c.FormValue("sender_wallet_id")); id != "" {
		in.SenderWalletID = id
	}
	return in, nil
}
