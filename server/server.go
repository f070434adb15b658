// Package server implements the wish API: payment configuration, the
// 402 challenge handler for purchasing a wish, and the public wish wall.
package server

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dongruixiao/cyberbuddha/chains"
	"github.com/dongruixiao/cyberbuddha/logger"
	"github.com/dongruixiao/cyberbuddha/metrics"
	"github.com/dongruixiao/cyberbuddha/store"
	"github.com/dongruixiao/cyberbuddha/types"
)

const (
	successMessage = "karma on-chain. buddha has seen it. no reply."
	ledgerWarning  = "wish recorded on-chain. wall updates when the universe allows."
)

// Facilitator is the slice of the facilitator client the handler needs.
type Facilitator interface {
	Verify(ctx context.Context, payload types.PaymentPayload, requirements types.PaymentRequirements) (*types.VerifyResponse, error)
	Settle(ctx context.Context, payload types.PaymentPayload, requirements types.PaymentRequirements) (*types.SettleResponse, error)
}

// Config is the payment identity of the server.
type Config struct {
	// Recipient is the address wishes are paid to.
	Recipient string

	// Network is the default payment network when the request names none.
	Network string

	// ResourceURL is the canonical URL advertised in payment requirements.
	ResourceURL string
}

// Server handles the wish API routes.
type Server struct {
	cfg         Config
	ledger      store.Ledger
	facilitator Facilitator
	validate    *validator.Validate
	log         logger.Logger
	rec         metrics.Recorder
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(s *Server) {
		s.rec = rec
	}
}

var amountPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// New creates the API server.
func New(cfg Config, ledger store.Ledger, facilitator Facilitator, opts ...Option) *Server {
	validate := validator.New()
	validate.RegisterValidation("usdamount", func(fl validator.FieldLevel) bool {
		return amountPattern.MatchString(fl.Field().String())
	})

	s := &Server{
		cfg:         cfg,
		ledger:      ledger,
		facilitator: facilitator,
		validate:    validate,
		log:         logger.NoopLogger{},
		rec:         metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts the API routes on a fiber app.
func (s *Server) Register(app *fiber.App) {
	app.Get("/api/health", s.Health)
	app.Get("/api/wish", s.GetConfig)
	app.Post("/api/wish", s.CreateWish)
	app.Get("/api/wishes", s.ListWishes)
}

func (s *Server) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// GetConfig reports the payment parameters a client needs before making
// a wish.
func (s *Server) GetConfig(c *fiber.Ctx) error {
	chain, err := chains.Lookup(s.cfg.Network)
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, types.ErrNotConfigured, "server payment network is not configured")
	}

	return c.JSON(types.WishConfig{
		Network:   s.cfg.Network,
		Asset:     chain.USDCAddress,
		MinAmount: types.MinAmount,
		Recipient: s.cfg.Recipient,
	})
}

// CreateWish is the payment challenge handler. The first request earns a
// 402 carrying the payment requirements; a request bearing a valid
// X-PAYMENT proof is verified and settled through the facilitator, then
// recorded on the wish wall.
func (s *Server) CreateWish(c *fiber.Ctx) error {
	if s.cfg.Recipient == "" {
		return errorResponse(c, fiber.StatusInternalServerError, types.ErrNotConfigured, "payment recipient is not configured")
	}

	var req types.WishRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, types.ErrInvalidBody, "request body must be JSON")
	}
	if err := s.validate.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, types.ErrInvalidBody, "amount must be a decimal string, content at most 200 characters")
	}

	network := s.cfg.Network
	if req.Network != "" {
		if !chains.IsSupported(req.Network) {
			return errorResponse(c, fiber.StatusBadRequest, types.ErrInvalidNetwork, fmt.Sprintf("unsupported network: %s", req.Network))
		}
		network = req.Network
	}

	amount, err := types.ParseUSDAmount(req.Amount)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, types.ErrInvalidAmount, err.Error())
	}

	chain, err := chains.Lookup(network)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, types.ErrUnsupportedNetwork, fmt.Sprintf("no payment asset on network: %s", network))
	}

	content := SanitizeContent(req.Content)
	requirements := buildRequirements(network, chain, amount, s.cfg.ResourceURL, s.cfg.Recipient)

	header := c.Get(types.PaymentHeader)
	if header == "" {
		s.rec.IncCounter(metrics.EventPaymentRequired, map[string]string{"network": network})
		return s.challenge(c, "payment header required", requirements, "")
	}

	payload, err := types.DecodePaymentHeader(header)
	if err != nil {
		return s.reject(c, "invalid payment header", requirements, "")
	}
	if err := payload.Validate(); err != nil {
		return s.reject(c, "invalid payment header", requirements, "")
	}

	if reason := precheck(payload, requirements); reason != "" {
		return s.reject(c, reason, requirements, "")
	}

	verifyStart := time.Now()
	verification, err := s.facilitator.Verify(c.Context(), payload, requirements)
	s.rec.ObserveLatency(metrics.OpVerify, time.Since(verifyStart), map[string]string{"network": network})
	if err != nil {
		s.log.Warn("payment verification unavailable", map[string]any{"network": network, "error": err.Error()})
		return s.reject(c, "payment verification failed", requirements, "")
	}
	if !verification.IsValid {
		reason := verification.InvalidReason
		if reason == "" {
			reason = "payment verification failed"
		}
		return s.reject(c, reason, requirements, verification.Payer)
	}

	settleStart := time.Now()
	settlement, err := s.facilitator.Settle(c.Context(), payload, requirements)
	s.rec.ObserveLatency(metrics.OpSettle, time.Since(settleStart), map[string]string{"network": network})
	if err != nil || !settlement.Success {
		s.rec.IncCounter(metrics.EventSettleFailed, map[string]string{"network": network})
		fields := map[string]any{"network": network, "payer": verification.Payer}
		if err != nil {
			fields["error"] = err.Error()
		} else {
			fields["reason"] = settlement.ErrorReason
		}
		s.log.Error("settlement failed", fields)
		return errorResponse(c, fiber.StatusInternalServerError, types.ErrSettleFailed, "payment settlement failed")
	}

	s.rec.IncCounter(metrics.EventPaymentSettled, map[string]string{"network": network})
	s.log.Info("payment settled", map[string]any{
		"network": network,
		"payer":   settlement.Payer,
		"tx":      settlement.Transaction,
		"amount":  amount.String(),
	})

	if content == "" {
		content = DefaultWishContent
	}

	response := types.WishResponse{
		Message:  successMessage,
		Blessing: "🙏 " + content + " 🙏",
		TxHash:   settlement.Transaction,
	}

	payer := settlement.Payer
	if payer == "" {
		payer = verification.Payer
	}
	wish := &store.Wish{
		TxHash:    settlement.Transaction,
		Payer:     payer,
		Amount:    amount,
		Content:   content,
		Network:   network,
		CreatedAt: time.Now(),
	}
	if err := s.ledger.Record(c.Context(), wish); err != nil {
		// Funds already moved; the payment must still read as a success.
		s.rec.IncCounter(metrics.EventLedgerFailed, map[string]string{"network": network})
		s.log.Error("ledger write failed", map[string]any{"tx": settlement.Transaction, "error": err.Error()})
		response.Warning = ledgerWarning
	}

	if encoded, err := types.EncodeSettlementHeader(*settlement); err == nil {
		c.Set(types.PaymentResponseHeader, encoded)
	}
	return c.JSON(response)
}

// ListWishes serves the paginated wish wall.
func (s *Server) ListWishes(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	wishes, total, err := s.ledger.List(c.Context(), limit, offset)
	if err != nil {
		s.log.Error("wish listing failed", map[string]any{"error": err.Error()})
		return errorResponse(c, fiber.StatusInternalServerError, types.ErrPaymentError, "failed to load wishes")
	}

	return c.JSON(types.WishList{Wishes: wishes, Total: total})
}

// precheck runs the local authorization checks that need no facilitator
// round trip. A non-empty result is the rejection reason.
func precheck(payload types.PaymentPayload, requirements types.PaymentRequirements) string {
	if payload.Network != requirements.Network {
		return fmt.Sprintf("payment network %s does not match required network %s", payload.Network, requirements.Network)
	}

	auth := payload.Payload.Authorization

	value, ok := new(big.Int).SetString(auth.Value, 10)
	required, reqOK := new(big.Int).SetString(requirements.MaxAmountRequired, 10)
	if !ok || !reqOK {
		return "authorization value is not a valid integer"
	}
	if value.Cmp(required) < 0 {
		return fmt.Sprintf("authorization value %s is less than required amount %s", auth.Value, requirements.MaxAmountRequired)
	}

	if !strings.EqualFold(auth.To, requirements.PayTo) {
		return "authorization recipient does not match payment recipient"
	}

	// Expiry check saves a doomed facilitator round trip; the facilitator
	// remains authoritative for the full validity window.
	if validBefore, err := strconv.ParseInt(auth.ValidBefore, 10, 64); err == nil {
		if validBefore <= time.Now().Unix() {
			return "authorization expired"
		}
	}

	return ""
}

// challenge answers with the 402 payment-required body.
func (s *Server) challenge(c *fiber.Ctx, reason string, requirements types.PaymentRequirements, payer string) error {
	return c.Status(fiber.StatusPaymentRequired).JSON(types.PaymentRequired{
		X402Version: types.X402Version,
		Error:       reason,
		Accepts:     []types.PaymentRequirements{requirements},
		Payer:       payer,
	})
}

// reject is a challenge for a payment that was presented and refused; the
// client may retry with a fresh authorization.
func (s *Server) reject(c *fiber.Ctx, reason string, requirements types.PaymentRequirements, payer string) error {
	s.rec.IncCounter(metrics.EventPaymentRejected, map[string]string{"network": requirements.Network})
	s.log.Info("payment rejected", map[string]any{"network": requirements.Network, "reason": reason})
	return s.challenge(c, reason, requirements, payer)
}

func errorResponse(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(types.ErrorBody{
		Error: types.X402Error{Code: code, Message: message},
	})
}
