package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/noah-isme/kitstore/internal/cart"
	"github.com/noah-isme/kitstore/internal/checkout"
	"github.com/noah-isme/kitstore/internal/client"
	"github.com/noah-isme/kitstore/internal/pricing"
)

const usage = `usage: shop <command> [flags]

commands:
  kits                       list every kit
  search <query>             search kits by name, team or description
  add <kit-id> <size>        add a kit to the cart (sizes: S M L XL)
  remove <line-id>           remove a cart line
  cart                       show the cart with shipping and tax
  clear                      empty the cart
  checkout                   place an order interactively
  last-order                 show the most recent confirmation
  login -email -password     sign in
  register -email -username -password [-first -last]
  logout                     sign out
  whoami                     show the signed-in account
  health                     check the store API`

var errUsage = errors.New("invalid usage")

func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return nil
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "kits":
		return a.listKits(ctx, "")
	case "search":
		if len(rest) == 0 {
			return a.usageErr("search needs a query")
		}
		return a.listKits(ctx, strings.Join(rest, " "))
	case "add":
		return a.add(ctx, rest)
	case "remove":
		return a.remove(ctx, rest)
	case "cart":
		a.showCart()
		return nil
	case "clear":
		a.cart.Clear(ctx)
		fmt.Fprintln(a.out, "Cart cleared.")
		return nil
	case "checkout":
		return a.checkout(ctx)
	case "last-order":
		return a.lastOrder(ctx)
	case "login":
		return a.login(ctx, rest)
	case "register":
		return a.register(ctx, rest)
	case "logout":
		if err := a.api.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Logged out.")
		return nil
	case "whoami":
		if u := a.api.CurrentUser(ctx); u != nil {
			fmt.Fprintf(a.out, "%s <%s>\n", u.DisplayName(), u.Email)
		} else {
			fmt.Fprintln(a.out, "Not logged in.")
		}
		return nil
	case "health":
		h, err := a.api.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "api: %s, database: %s\n", h.Status, h.Database)
		return nil
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	}
	return a.usageErr(fmt.Sprintf("unknown command %q", cmd))
}

func (a *app) usageErr(msg string) error {
	fmt.Fprintln(a.out, usage)
	return fmt.Errorf("%s: %w", msg, errUsage)
}

func (a *app) listKits(ctx context.Context, query string) error {
	var (
		kits []cart.Product
		err  error
	)
	if query == "" {
		kits, err = a.api.Kits(ctx)
	} else {
		kits, err = a.api.SearchKits(ctx, query)
	}
	if err != nil {
		return err
	}
	if len(kits) == 0 {
		fmt.Fprintln(a.out, "No kits found.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTEAM\tNAME\tPRICE\tSTOCK")
	for _, k := range kits {
		fmt.Fprintf(tw, "%d\t%s\t%s\t$%s\t%d\n", k.ID, k.Team, k.Name, k.Price, k.Stock)
	}
	return tw.Flush()
}

func (a *app) add(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return a.usageErr("add needs a kit id and a size")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return a.usageErr(fmt.Sprintf("kit id %q is not a number", args[0]))
	}
	size, err := cart.ParseSize(args[1])
	if err != nil {
		return a.usageErr(err.Error())
	}
	kits, err := a.api.Kits(ctx)
	if err != nil {
		return err
	}
	for i := range kits {
		if kits[i].ID != id {
			continue
		}
		item, ok := a.cart.Add(ctx, &kits[i], size)
		if !ok {
			return fmt.Errorf("could not add kit %d", id)
		}
		fmt.Fprintf(a.out, "Added %s %s (%s) as line %d. Cart total: $%s\n", item.Team, item.Name, item.Size, item.LineID, a.cart.Total())
		return nil
	}
	return fmt.Errorf("kit %d not found", id)
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usageErr("remove needs a line id")
	}
	lineID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return a.usageErr(fmt.Sprintf("line id %q is not a number", args[0]))
	}
	if !a.cart.Remove(ctx, lineID) {
		fmt.Fprintf(a.out, "No cart line %d.\n", lineID)
		return nil
	}
	fmt.Fprintf(a.out, "Removed line %d. Cart total: $%s\n", lineID, a.cart.Total())
	return nil
}

func (a *app) showCart() {
	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Your cart is empty.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tTEAM\tNAME\tSIZE\tPRICE")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t$%s\n", it.LineID, it.Team, it.Name, it.Size, it.UnitPrice)
	}
	_ = tw.Flush()
	printBreakdown(a.out, pricing.DefaultRules.Compute(a.cart.Total()))
}

func printBreakdown(w io.Writer, b pricing.Breakdown) {
	shipping := "$" + b.Shipping.String()
	if b.Shipping == 0 {
		shipping = "FREE"
	}
	fmt.Fprintf(w, "Subtotal: $%s\nShipping: %s\nTax:      $%s\nTotal:    $%s\n", b.Subtotal, shipping, b.Tax, b.Total)
}

func (a *app) lastOrder(ctx context.Context) error {
	conf, found, err := checkout.LastOrder(ctx, a.storage)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(a.out, "No orders placed yet.")
		return nil
	}
	printConfirmation(a.out, conf)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" && *email != "" {
		*password = a.prompt("Password", "")
	}
	res, err := a.api.Login(ctx, client.Credentials{Email: *email, Password: *password})
	return a.reportAuth(res, err)
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	var in client.Registration
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Username, "username", "", "username")
	fs.StringVar(&in.Password, "password", "", "password (at least 8 characters)")
	fs.StringVar(&in.FirstName, "first", "", "first name")
	fs.StringVar(&in.LastName, "last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.api.Register(ctx, in)
	return a.reportAuth(res, err)
}

func (a *app) reportAuth(res client.AuthResult, err error) error {
	if err != nil {
		return err
	}
	if res.Error != "" {
		return errors.New(res.Error)
	}
	name := ""
	if res.User != nil {
		name = res.User.DisplayName()
	}
	fmt.Fprintf(a.out, "%s. Welcome, %s!\n", res.Message, name)
	return nil
}
