package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/kitstore/internal/checkout"
)

var errAborted = errors.New("checkout aborted")

func (a *app) checkout(ctx context.Context) error {
	flow, err := checkout.New(ctx, checkout.Config{
		Cart:    a.cart,
		Orders:  a.api,
		Storage: a.storage,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}
	if flow.View() == checkout.ViewEmpty {
		fmt.Fprintln(a.out, "Your cart is empty. Add a kit first.")
		return nil
	}
	if u := a.api.CurrentUser(ctx); u != nil {
		flow.Prefill(*u)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		before := flow.Step()
		switch before {
		case checkout.StepShipping:
			flow.UpdateShipping(a.askShipping(flow.Draft().Shipping))
			flow.SetSaveInfo(a.confirm("Save contact details for next time", flow.Draft().SaveInfo))
			if err := a.advance(flow); err != nil {
				return err
			}
		case checkout.StepPayment:
			flow.UpdatePayment(a.askPayment(flow.Draft().Payment))
			if err := a.advance(flow); err != nil {
				return err
			}
		case checkout.StepReview:
			done, err := a.review(ctx, flow)
			if err != nil || done {
				return err
			}
		}
		if flow.Step() == before && a.eof() {
			return errAborted
		}
	}
}

// advance moves to the next step, printing validation problems so the
// customer can fill the fields in again.
func (a *app) advance(flow *checkout.Flow) error {
	err := flow.Next()
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintf(a.out, "%s (missing: %s)\n", verr.Message, strings.Join(verr.Fields, ", "))
		return nil
	}
	return err
}

func (a *app) review(ctx context.Context, flow *checkout.Flow) (bool, error) {
	d := flow.Draft()
	fmt.Fprintln(a.out, "\nReview your order")
	fmt.Fprintf(a.out, "Ship to:  %s <%s>\n          %s\n", d.Shipping.Name, d.Shipping.Email, d.Shipping.OneLine())
	fmt.Fprintf(a.out, "Card:     %s\n", maskCard(d.Payment.CardNumber))
	for _, it := range a.cart.Items() {
		fmt.Fprintf(a.out, "  %s %s (%s)  $%s\n", it.Team, it.Name, it.Size, it.UnitPrice)
	}
	printBreakdown(a.out, flow.Pricing())

	switch strings.ToLower(a.prompt("Place order? [y]es / [b]ack / [q]uit", "y")) {
	case "b", "back":
		flow.Prev()
		return false, nil
	case "q", "quit":
		return true, errAborted
	case "y", "yes":
	default:
		return false, nil
	}

	fmt.Fprintln(a.out, "Processing...")
	conf, err := flow.Submit(ctx)
	var oerr *checkout.OrderError
	if errors.As(err, &oerr) {
		fmt.Fprintln(a.out, oerr.Message)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	printConfirmation(a.out, conf)
	return true, nil
}

func (a *app) askShipping(s checkout.Shipping) checkout.Shipping {
	fmt.Fprintln(a.out, "\nStep 1 of 3: Shipping")
	s.Name = a.prompt("Full name", s.Name)
	s.Email = a.prompt("Email", s.Email)
	s.Phone = a.prompt("Phone (optional)", s.Phone)
	s.Address = a.prompt("Address", s.Address)
	s.City = a.prompt("City", s.City)
	s.State = a.prompt("State", s.State)
	s.Postal = a.prompt("Postal code", s.Postal)
	s.Country = a.prompt("Country (optional)", s.Country)
	return s
}

func (a *app) askPayment(p checkout.Payment) checkout.Payment {
	fmt.Fprintln(a.out, "\nStep 2 of 3: Payment")
	p.CardNumber = a.prompt("Card number", p.CardNumber)
	p.Expiry = a.prompt("Expiry (MM/YY)", p.Expiry)
	p.CVV = a.prompt("CVV", p.CVV)
	return p
}

func printConfirmation(w io.Writer, c checkout.Confirmation) {
	fmt.Fprintf(w, "\nOrder confirmed!\nOrder number: %s\nItems: %d\nTotal: $%s\nPlaced: %s\n",
		c.OrderNumber, len(c.Items), c.Total, c.Date.Local().Format("2006-01-02 15:04"))
}

// prompt reads one line, returning def when the line is blank.
func (a *app) prompt(label, def string) string {
	if def != "" {
		fmt.Fprintf(a.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(a.out, "%s: ", label)
	}
	line, _ := a.in.ReadString('\n')
	if v := strings.TrimSpace(line); v != "" {
		return v
	}
	return def
}

func (a *app) confirm(label string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	switch strings.ToLower(a.prompt(label+" ("+hint+")", "")) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return def
}

func (a *app) eof() bool {
	_, err := a.in.Peek(1)
	return errors.Is(err, io.EOF)
}

func maskCard(number string) string {
	digits := strings.ReplaceAll(number, " ", "")
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
