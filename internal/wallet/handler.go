package wallet

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/middleware"
)

const maxImageBytes = 5 << 20

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name string `json:"name"`
}

// Response is the JSON shape of a wallet.
type Response struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	About       *string   `json:"about"`
	LogoURL     *string   `json:"logo_url"`
	CoverURL    *string   `json:"cover_url"`
	AddToWebMap bool      `json:"add_to_web_map"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToResponse renders w for the API.
func ToResponse(w Wallet) Response {
	return Response{
		ID:          w.ID,
		Name:        w.Name,
		About:       w.About,
		LogoURL:     w.LogoURL,
		CoverURL:    w.CoverURL,
		AddToWebMap: w.AddToWebMap,
		Active:      w.Active,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

// Get returns a wallet by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.GetByID(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return err
	}
	return c.JSON(ToResponse(w))
}

// Create provisions a single wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.CreateWallet(c.UserContext(), req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(w))
}

// Update applies a multipart partial update.
func (h *Handler) Update(c *fiber.Ctx) error {
	in := UpdateInput{
		WalletID:       c.Params("walletId"),
		ActingWalletID: middleware.WalletID(c),
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "expected multipart/form-data body")
	}

	if v, ok := formValue(form, "display_name"); ok {
		in.Name = &v
	}
	if v, ok := formValue(form, "about"); ok {
		in.About = &v
	}
	if v, ok := formValue(form, "add_to_web_map"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return domain.NewValidationError("add_to_web_map", "must be a boolean")
		}
		in.AddToWebMap = &b
	}
	if in.Logo, err = formImage(form, "logo_image"); err != nil {
		return err
	}
	if in.Cover, err = formImage(form, "cover_image"); err != nil {
		return err
	}

	w, err := h.service.UpdateWallet(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(ToResponse(w))
}

// Deactivate revokes the wallet's trust edges and marks it inactive.
func (h *Handler) Deactivate(c *fiber.Ctx) error {
	if err := h.service.Deactivate(c.UserContext(), middleware.WalletID(c), c.Params("walletId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Balance returns the wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	if err := h.service.Authorize(c.UserContext(), middleware.WalletID(c), walletID); err != nil {
		return err
	}
	balance, err := h.service.Balance(c.UserContext(), walletID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"wallet_id": balance.WalletID,
		"balance":   balance.Amount,
		"timestamp": balance.AsOf,
	})
}

func formValue(form *multipart.Form, key string) (string, bool) {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

func formImage(form *multipart.Form, key string) (*Image, error) {
	files := form.File[key]
	if len(files) == 0 {
		return nil, nil
	}
	fh := files[0]
	if fh.Size > maxImageBytes {
		return nil, domain.NewValidationError(key, "image exceeds 5MB")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, "cannot read "+key)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, "cannot read "+key)
	}
	return &Image{Data: data, ContentType: fh.Header.Get(fiber.HeaderContentType)}, nil
}
