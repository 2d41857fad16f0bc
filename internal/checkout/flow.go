package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kitstore/internal/cart"
	"github.com/noah-isme/kitstore/internal/localstore"
	"github.com/noah-isme/kitstore/internal/obs"
	"github.com/noah-isme/kitstore/internal/order"
	"github.com/noah-isme/kitstore/internal/pricing"
)

// Step is one of the three editable checkout pages.
type Step int

const (
	StepShipping Step = iota + 1
	StepPayment
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// State is the position of the flow in its lifecycle.
type State string

const (
	StateShipping  State = "shipping"
	StatePayment   State = "payment"
	StateReview    State = "review"
	StatePlacing   State = "placing"
	StateConfirmed State = "confirmed"
)

// View tells the storefront which screen to render.
type View string

const (
	ViewEmpty     View = "empty"
	ViewForm      View = "form"
	ViewConfirmed View = "confirmed"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrSubmissionInFlight = errors.New("order submission already in progress")
	ErrNotAtReview        = errors.New("order can only be placed from the review step")
	ErrAlreadyConfirmed   = errors.New("order already confirmed")
)

const msgPlaceFailed = "Failed to place order. Please try again."

// OrderError carries the message shown to the customer after a failed placement.
type OrderError struct {
	Message string
	Err     error
}

func (e *OrderError) Error() string { return e.Message }

func (e *OrderError) Unwrap() error { return e.Err }

// OrderCreator places orders with the shop backend.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req order.Request) (order.Response, error)
}

// Confirmation is the snapshot kept after an order is placed. Order is the
// payload exactly as it was submitted.
type Confirmation struct {
	OrderNumber string        `json:"orderNumber"`
	OrderID     int64         `json:"orderId,omitempty"`
	Total       pricing.Money `json:"total"`
	Items       []order.Item  `json:"items"`
	Date        time.Time     `json:"date"`
	Order       order.Request `json:"order"`
}

// Config wires the flow to its collaborators.
type Config struct {
	Cart    *cart.Store
	Orders  OrderCreator
	Storage localstore.Storage
	Rules   *pricing.Rules
	Logger  *zerolog.Logger
	Now     func() time.Time
}

// Flow drives one checkout session from shipping details to a placed order.
type Flow struct {
	cart     *cart.Store
	orders   OrderCreator
	storage  localstore.Storage
	rules    pricing.Rules
	logger   *zerolog.Logger
	now      func() time.Time
	validate *validator.Validate

	mu           sync.Mutex
	step         Step
	placing      bool
	draft        Draft
	err          error
	confirmation *Confirmation
}

var nopLogger = zerolog.Nop()

// New starts a flow at the shipping step, pre-filling contact details saved by
// an earlier checkout.
func New(ctx context.Context, cfg Config) (*Flow, error) {
	if cfg.Cart == nil {
		return nil, errors.New("checkout: cart store is required")
	}
	if cfg.Orders == nil {
		return nil, errors.New("checkout: order creator is required")
	}
	f := &Flow{
		cart:     cfg.Cart,
		orders:   cfg.Orders,
		storage:  cfg.Storage,
		rules:    pricing.DefaultRules,
		logger:   cfg.Logger,
		now:      cfg.Now,
		validate: newValidator(),
		step:     StepShipping,
	}
	if cfg.Rules != nil {
		f.rules = *cfg.Rules
	}
	if f.logger == nil {
		f.logger = &nopLogger
	}
	if f.now == nil {
		f.now = time.Now
	}
	f.loadSavedInfo(ctx)
	return f, nil
}

func (f *Flow) loadSavedInfo(ctx context.Context) {
	if f.storage == nil {
		return
	}
	var saved SavedInfo
	found, err := localstore.GetJSON(ctx, f.storage, localstore.KeyUserInfo, &saved)
	if err != nil {
		f.logger.Warn().Err(err).Str("key", localstore.KeyUserInfo).Msg("saved_info_restore_failed")
		return
	}
	if !found {
		return
	}
	f.draft.Shipping.Name = saved.Name
	f.draft.Shipping.Email = saved.Email
	f.draft.Shipping.Phone = saved.Phone
}

// Prefill copies the account name and email into the shipping step.
func (f *Flow) Prefill(u User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name := u.DisplayName(); name != "" {
		f.draft.Shipping.Name = name
	}
	if u.Email != "" {
		f.draft.Shipping.Email = u.Email
	}
}

// UpdateShipping replaces the shipping fields.
func (f *Flow) UpdateShipping(s Shipping) {
	f.mu.Lock()
	f.draft.Shipping = s
	f.mu.Unlock()
}

// UpdatePayment replaces the payment fields.
func (f *Flow) UpdatePayment(p Payment) {
	f.mu.Lock()
	f.draft.Payment = p
	f.mu.Unlock()
}

// SetSaveInfo toggles remembering contact details after a successful order.
func (f *Flow) SetSaveInfo(save bool) {
	f.mu.Lock()
	f.draft.SaveInfo = save
	f.mu.Unlock()
}

// Draft returns a copy of the entered data.
func (f *Flow) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Step returns the current editable step.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// State reports the lifecycle position, including placement and confirmation.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Flow) stateLocked() State {
	switch {
	case f.confirmation != nil:
		return StateConfirmed
	case f.placing:
		return StatePlacing
	case f.step == StepPayment:
		return StatePayment
	case f.step == StepReview:
		return StateReview
	}
	return StateShipping
}

// Err returns the message currently surfaced to the customer, if any.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// View picks the screen to render.
func (f *Flow) View() View {
	f.mu.Lock()
	confirmed := f.confirmation != nil
	f.mu.Unlock()
	if confirmed {
		return ViewConfirmed
	}
	if f.cart.Count() == 0 {
		return ViewEmpty
	}
	return ViewForm
}

// Confirmation returns the placed order snapshot once the flow is confirmed.
func (f *Flow) Confirmation() (Confirmation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmation == nil {
		return Confirmation{}, false
	}
	return *f.confirmation, true
}

// Pricing derives shipping, tax and total from the current cart.
func (f *Flow) Pricing() pricing.Breakdown {
	return f.rules.Compute(f.cart.Total())
}

// Next validates the current step and advances. Review is the last step.
func (f *Flow) Next() error {
	if f.cart.Count() == 0 {
		return ErrEmptyCart
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmation != nil {
		return ErrAlreadyConfirmed
	}
	if f.placing {
		return ErrSubmissionInFlight
	}
	if f.step == StepReview {
		return nil
	}
	if err := validateStep(f.validate, f.step, f.draft); err != nil {
		f.err = err
		return err
	}
	f.err = nil
	f.step++
	return nil
}

// Prev moves back one step without validating. Entered data is kept.
func (f *Flow) Prev() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placing || f.confirmation != nil {
		return
	}
	f.err = nil
	if f.step > StepShipping {
		f.step--
	}
}

// Submit places the order. On success the cart is cleared and the flow is
// confirmed; on failure the flow returns to review with the cart untouched.
func (f *Flow) Submit(ctx context.Context) (Confirmation, error) {
	f.mu.Lock()
	switch {
	case f.placing:
		f.mu.Unlock()
		return Confirmation{}, ErrSubmissionInFlight
	case f.confirmation != nil:
		f.mu.Unlock()
		return Confirmation{}, ErrAlreadyConfirmed
	case f.step != StepReview:
		f.mu.Unlock()
		return Confirmation{}, ErrNotAtReview
	}
	items := f.cart.Items()
	if len(items) == 0 {
		f.mu.Unlock()
		return Confirmation{}, ErrEmptyCart
	}
	for _, step := range []Step{StepShipping, StepPayment} {
		if err := validateStep(f.validate, step, f.draft); err != nil {
			f.err = err
			f.mu.Unlock()
			obs.CountCheckoutSubmission("rejected")
			return Confirmation{}, err
		}
	}
	draft := f.draft
	f.placing = true
	f.err = nil
	f.mu.Unlock()

	breakdown := f.rules.Compute(pricing.Sum(unitPrices(items)...))
	req := buildRequest(items, breakdown, draft)
	resp, err := f.orders.CreateOrder(ctx, req)

	if err != nil {
		f.logger.Error().Err(err).Msg("checkout_place_failed")
		obs.CountCheckoutSubmission("failed")
		return Confirmation{}, f.fail(&OrderError{Message: msgPlaceFailed, Err: err})
	}
	if resp.Failed() {
		msg := resp.Message
		if strings.TrimSpace(msg) == "" {
			msg = resp.Error
		}
		f.logger.Warn().Str("error", resp.Error).Msg("checkout_rejected")
		obs.CountCheckoutSubmission("rejected")
		return Confirmation{}, f.fail(&OrderError{Message: msg})
	}

	now := f.now()
	conf := Confirmation{
		OrderNumber: resp.OrderNumber,
		OrderID:     resp.OrderID,
		Total:       req.FinalTotal,
		Items:       req.Items,
		Date:        now.UTC(),
		Order:       req,
	}
	if conf.OrderNumber == "" {
		conf.OrderNumber = fmt.Sprintf("ORD-%d", now.UnixMilli())
	}
	f.persistConfirmation(ctx, draft, conf)
	f.cart.Clear(ctx)

	f.mu.Lock()
	f.placing = false
	f.confirmation = &conf
	f.mu.Unlock()

	obs.CountCheckoutSubmission("confirmed")
	f.logger.Info().Str("order_number", conf.OrderNumber).Int("items", len(conf.Items)).Str("total", conf.Total.String()).Msg("checkout_confirmed")
	return conf, nil
}

func (f *Flow) fail(err *OrderError) error {
	f.mu.Lock()
	f.placing = false
	f.step = StepReview
	f.err = err
	f.mu.Unlock()
	return err
}

func (f *Flow) persistConfirmation(ctx context.Context, draft Draft, conf Confirmation) {
	if f.storage == nil {
		return
	}
	if draft.SaveInfo {
		info := SavedInfo{Name: draft.Shipping.Name, Email: draft.Shipping.Email, Phone: draft.Shipping.Phone}
		if err := localstore.SetJSON(ctx, f.storage, localstore.KeyUserInfo, info); err != nil {
			f.logger.Warn().Err(err).Str("key", localstore.KeyUserInfo).Msg("saved_info_persist_failed")
		}
	}
	if err := localstore.SetJSON(ctx, f.storage, localstore.KeyLastOrder, conf); err != nil {
		f.logger.Warn().Err(err).Str("key", localstore.KeyLastOrder).Msg("last_order_persist_failed")
	}
}

// LastOrder reads the most recent confirmation snapshot from storage.
func LastOrder(ctx context.Context, storage localstore.Storage) (Confirmation, bool, error) {
	var conf Confirmation
	found, err := localstore.GetJSON(ctx, storage, localstore.KeyLastOrder, &conf)
	if err != nil || !found {
		return Confirmation{}, false, err
	}
	return conf, true, nil
}

func unitPrices(items []cart.Item) []pricing.Money {
	out := make([]pricing.Money, len(items))
	for i, it := range items {
		out[i] = it.UnitPrice
	}
	return out
}

func buildRequest(items []cart.Item, b pricing.Breakdown, d Draft) order.Request {
	lines := make([]order.Item, 0, len(items))
	for _, it := range items {
		size := string(it.Size)
		if size == "" {
			size = string(cart.SizeM)
		}
		lines = append(lines, order.Item{
			ID:       it.ProductID,
			Name:     it.Name,
			Team:     it.Team,
			Size:     size,
			Quantity: 1,
			Price:    it.UnitPrice,
		})
	}
	method := "Other"
	if d.Payment.CardNumber != "" {
		method = "Card"
	}
	return order.Request{
		Items:           lines,
		Total:           b.Subtotal,
		Shipping:        b.Shipping,
		Tax:             b.Tax,
		FinalTotal:      b.Total,
		CustomerName:    d.Shipping.Name,
		CustomerEmail:   d.Shipping.Email,
		ShippingAddress: d.Shipping.OneLine(),
		PaymentMethod:   method,
	}
}
