package trust

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/middleware"
	"github.com/walletsvc/wallet_service/internal/wallet"
)

// Handler exposes trust HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a trust HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type trustResponse struct {
	ID                 string      `json:"id"`
	ActorWalletID      string      `json:"actor_wallet_id"`
	TargetWalletID     string      `json:"target_wallet_id"`
	OriginatorWalletID string      `json:"originator_wallet_id"`
	Type               Type        `json:"type"`
	RequestType        RequestType `json:"request_type"`
	State              State       `json:"state"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func toResponse(t Trust) trustResponse {
	return trustResponse{
		ID:                 t.ID,
		ActorWalletID:      t.ActorWalletID,
		TargetWalletID:     t.TargetWalletID,
		OriginatorWalletID: t.OriginatorWalletID,
		Type:               t.Type,
		RequestType:        t.RequestType,
		State:              t.State,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

type createRequest struct {
	RequestType string `json:"trust_request_type"`
	Requester   string `json:"requester_wallet"`
	Requestee   string `json:"requestee_wallet"`
}

// ListWallets serves GET /wallets/:walletId/wallets.
func (h *Handler) ListWallets(c *fiber.Ctx) error {
	q := ReachableQuery{
		WalletID:  c.Params("walletId"),
		Name:      c.Query("name"),
		SortBy:    c.Query("sort_by"),
		Order:     c.Query("order"),
		WithCount: c.QueryBool("count", false),
	}

	var err error
	if q.Limit, q.Offset, err = pageParams(c); err != nil {
		return err
	}
	if q.CreatedFrom, err = dateParam(c, "created_at_start_date"); err != nil {
		return err
	}
	if q.CreatedTo, err = dateParam(c, "created_at_end_date"); err != nil {
		return err
	}

	res, err := h.service.GetAllWallets(c.UserContext(), middleware.WalletID(c), q)
	if err != nil {
		return err
	}

	wallets := make([]wallet.Response, 0, len(res.Wallets))
	for _, w := range res.Wallets {
		wallets = append(wallets, wallet.ToResponse(w))
	}
	body := fiber.Map{"wallets": wallets}
	if q.WithCount {
		body["count"] = res.Count
	}
	return c.JSON(body)
}

// ListRelationships serves GET /wallets/:walletId/trust_relationships.
func (h *Handler) ListRelationships(c *fiber.Ctx) error {
	f := Filter{
		WalletID:    c.Params("walletId"),
		State:       State(c.Query("state")),
		Type:        Type(c.Query("type")),
		RequestType: RequestType(c.Query("request_type")),
		SortBy:      c.Query("sort_by"),
		Order:       c.Query("order"),
		WithCount:   c.QueryBool("count", false),
	}
	var err error
	if f.Limit, f.Offset, err = pageParams(c); err != nil {
		return err
	}

	edges, count, err := h.service.GetTrustRelationships(c.UserContext(), middleware.WalletID(c), f)
	if err != nil {
		return err
	}

	out := make([]trustResponse, 0, len(edges))
	for _, t := range edges {
		out = append(out, toResponse(t))
	}
	body := fiber.Map{"trust_relationships": out}
	if f.WithCount {
		body["count"] = count
	}
	return c.JSON(body)
}

// Create opens a trust request.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	t, err := h.service.Request(c.UserContext(), RequestInput{
		ActingWalletID: middleware.WalletID(c),
		RequestType:    RequestType(req.RequestType),
		Requester:      req.Requester,
		Requestee:      req.Requestee,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(t))
}

// Approve serves POST /trust_relationships/:id/approve.
func (h *Handler) Approve(c *fiber.Ctx) error {
	return h.respond(c, h.service.Approve)
}

// Reject serves POST /trust_relationships/:id/reject.
func (h *Handler) Reject(c *fiber.Ctx) error {
	return h.respond(c, h.service.Reject)
}

// Revoke serves POST /trust_relationships/:id/revoke.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	return h.respond(c, h.service.Revoke)
}

func (h *Handler) respond(c *fiber.Ctx, op func(ctx context.Context, actingWalletID, trustID string) (Trust, error)) error {
	t, err := op(c.UserContext(), middleware.WalletID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toResponse(t))
}

func pageParams(c *fiber.Ctx) (int, int, error) {
	limit, err := intParam(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := intParam(c, "offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intParam(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, domain.NewValidationError(key, "must be a non-negative integer")
	}
	return v, nil
}

// dateParam accepts YYYY-MM-DD or an RFC 3339 timestamp.
func dateParam(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, domain.NewValidationError(key, "must be a date (YYYY-MM-DD)")
}
