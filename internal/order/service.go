package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kitstore/internal/common"
	"github.com/noah-isme/kitstore/internal/obs"
	"github.com/noah-isme/kitstore/internal/pricing"
)

// ErrNoItems is returned when an order arrives without lines.
var ErrNoItems = errors.New("order must have items")

// NewOrder is the row written for a placed order.
type NewOrder struct {
	Number          string
	CustomerName    string
	CustomerEmail   string
	ShippingAddress string
	PaymentMethod   string
	Subtotal        pricing.Money
	Shipping        pricing.Money
	Tax             pricing.Money
	FinalAmount     pricing.Money
	ItemsCount      int
	CreatedAt       time.Time
}

// Repository persists orders.
type Repository interface {
	CreateOrder(ctx context.Context, o NewOrder) (int64, error)
}

// Service validates and records orders.
type Service struct {
	Repo     Repository
	Validate *validator.Validate
	Logger   *zerolog.Logger
	Now      func() time.Time
}

// NewService constructs a Service with a default validator and clock.
func NewService(repo Repository, logger *zerolog.Logger) *Service {
	return &Service{Repo: repo, Validate: validator.New(), Logger: logger, Now: time.Now}
}

// Create assigns an order number, stores the order as pending and reports the result.
func (s *Service) Create(ctx context.Context, req Request) (Response, error) {
	if len(req.Items) == 0 {
		countOrder("rejected")
		return Response{}, common.NewAppError("VALIDATION_ERROR", "Order must have items", http.StatusBadRequest, ErrNoItems)
	}
	if s.Validate != nil {
		if err := s.Validate.Struct(req); err != nil {
			countOrder("rejected")
			return Response{}, common.NewAppError("VALIDATION_ERROR", "Invalid order payload", http.StatusBadRequest, err).
				WithDetails(fieldErrors(err))
		}
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at := now().UTC()
	row := NewOrder{
		Number:          fmt.Sprintf("ORD-%d", at.UnixMilli()),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Subtotal:        req.Total,
		Shipping:        req.Shipping,
		Tax:             req.Tax,
		FinalAmount:     req.FinalTotal,
		ItemsCount:      len(req.Items),
		CreatedAt:       at,
	}
	id, err := s.Repo.CreateOrder(ctx, row)
	if err != nil {
		countOrder("failed")
		return Response{}, common.NewAppError("DB_ERROR", "Failed to save order", http.StatusInternalServerError, fmt.Errorf("create order %s: %w", row.Number, err))
	}
	countOrder("created")
	if obs.OrderAmount != nil {
		obs.OrderAmount.Observe(req.FinalTotal.Float())
	}
	if s.Logger != nil {
		s.Logger.Info().Str("order_number", row.Number).Int64("order_id", id).Int("items", len(req.Items)).Msg("order_created")
	}
	return Response{
		Success:     true,
		Message:     "Order placed successfully!",
		OrderNumber: row.Number,
		OrderID:     id,
		Total:       req.FinalTotal,
		ItemsCount:  len(req.Items),
	}, nil
}

func countOrder(result string) {
	if obs.OrdersCreated != nil {
		obs.OrdersCreated.WithLabelValues(result).Inc()
	}
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Namespace()] = fe.Tag()
	}
	return out
}
