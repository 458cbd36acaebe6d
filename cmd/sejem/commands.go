package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/erazemk/sejem/internal/catalog"
	"github.com/erazemk/sejem/internal/client"
	"github.com/erazemk/sejem/internal/detail"
	"github.com/erazemk/sejem/internal/imaging"
	"github.com/erazemk/sejem/internal/model"
	"github.com/erazemk/sejem/internal/session"
)

// withApp parses args, resolves configuration and runs fn against an open
// app. fs must already have the command's own flags registered.
func withApp(ctx context.Context, fs *flag.FlagSet, common *commonFlags, args []string, fn func(*app) error) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, cleanup, err := common.resolve(fs)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func cmdLogin(ctx context.Context, args []string) error {
	fs, common := newFlagSet("login", "", `  -u, -user <name>     username (prompted when omitted)
  -p, -password <pw>   password (read from stdin when omitted)
`)
	var username, password string
	fs.StringVar(&username, "user", "", "")
	fs.StringVar(&username, "u", "", "")
	fs.StringVar(&password, "password", "", "")
	fs.StringVar(&password, "p", "", "")

	return withApp(ctx, fs, common, args, func(a *app) error {
		in := bufio.NewReader(os.Stdin)
		var err error
		if username == "" {
			if username, err = prompt(in, "Username: "); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = prompt(in, "Password: "); err != nil {
				return err
			}
		}

		user, err := a.session.Login(ctx, username, password)
		if err != nil {
			return fmt.Errorf("login failed: %s", client.MessageOf(err, err.Error()))
		}
		fmt.Printf("Logged in as %s (balance %s).\n", user.Username, user.Balance.Dollars())
		return nil
	})
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func cmdLogout(ctx context.Context, args []string) error {
	fs, common := newFlagSet("logout", "", "")
	return withApp(ctx, fs, common, args, func(a *app) error {
		if !a.session.Authenticated() {
			fmt.Println("Not logged in.")
			return nil
		}
		if err := a.session.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	})
}

func cmdWhoami(ctx context.Context, args []string) error {
	fs, common := newFlagSet("whoami", "", "")
	return withApp(ctx, fs, common, args, func(a *app) error {
		user, err := currentUser(ctx, a)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Username:\t%s\n", user.Username)
		fmt.Fprintf(w, "Email:\t%s\n", user.Email)
		fmt.Fprintf(w, "Phone:\t%s\n", orNA(user.Phone))
		fmt.Fprintf(w, "Balance:\t%s\n", user.Balance.Dollars())
		return w.Flush()
	})
}

// currentUser returns the logged-in account or a "login required" error.
func currentUser(ctx context.Context, a *app) (*model.UserAccount, error) {
	user, err := a.session.CurrentUser(ctx)
	if errors.Is(err, session.ErrNotAuthenticated) {
		return nil, errors.New("login required, run: sejem login")
	}
	return user, err
}

func cmdItems(ctx context.Context, args []string) error {
	fs, common := newFlagSet("items", "", `  -q <text>            search title, description and location
  -status <status>     available, pending or sold
  -max <amount>        maximum price
  -free                only free listings
  -hide-own            hide your own listings
`)
	var query, status, maxPrice string
	var freeOnly, hideOwn bool
	fs.StringVar(&query, "q", "", "")
	fs.StringVar(&status, "status", "", "")
	fs.StringVar(&maxPrice, "max", "", "")
	fs.BoolVar(&freeOnly, "free", false, "")
	fs.BoolVar(&hideOwn, "hide-own", false, "")

	return withApp(ctx, fs, common, args, func(a *app) error {
		if status != "" && !model.ValidStatus(status) {
			return fmt.Errorf("unknown status %q", status)
		}
		f := catalog.Filter{Query: query, Status: status, FreeOnly: freeOnly, HideOwn: hideOwn}
		limit, err := catalog.ParsePriceLimit(maxPrice)
		if err != nil {
			return err
		}
		f.MaxPrice = limit
		if hideOwn {
			user, err := currentUser(ctx, a)
			if err != nil {
				return err
			}
			f.ViewerID = user.ID
		}

		listings, err := a.api.ListItems(ctx, client.ListParams{Query: query, Status: status})
		if err != nil {
			return fmt.Errorf("loading listings: %w", err)
		}
		listings = f.Apply(listings)
		if len(listings) == 0 {
			fmt.Println("No listings found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPRICE\tSTATUS\tLOCATION\tSELLER")
		for _, l := range listings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				l.ID, l.Title, catalog.PriceLabel(l.Price), l.Status, l.Location, l.SellerName)
		}
		return w.Flush()
	})
}

func cmdShow(ctx context.Context, args []string) error {
	fs, common := newFlagSet("show", " <id>", "")
	return withApp(ctx, fs, common, args, func(a *app) error {
		id, err := onlyArg(fs, "listing id")
		if err != nil {
			return err
		}
		vm := detail.New(a.api, a.session)
		if err := vm.Load(ctx, id); err != nil {
			if client.IsNotFound(err) {
				return fmt.Errorf("listing %s not found", id)
			}
			return fmt.Errorf("loading listing: %w", err)
		}
		return printDetail(os.Stdout, vm.State())
	})
}

func printDetail(out io.Writer, st detail.State) error {
	l := st.Listing
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\n\n", l.Title)
	fmt.Fprintf(w, "Price:\t%s\n", catalog.PriceLabel(l.Price))
	fmt.Fprintf(w, "Status:\t%s\n", l.Status)
	if l.Location != "" {
		fmt.Fprintf(w, "Location:\t%s\n", l.Location)
	}
	if l.SellerName != "" {
		fmt.Fprintf(w, "Seller:\t%s\n", l.SellerName)
	}
	if l.Description != "" {
		fmt.Fprintf(w, "\n%s\n", l.Description)
	}

	if c := st.Contact; c != nil {
		title := "Seller contact"
		if c.Role == model.ContactRoleBuyer {
			title = "Buyer contact"
		}
		fmt.Fprintf(w, "\n%s\n", title)
		fmt.Fprintf(w, "  Username:\t%s\n", c.Username)
		fmt.Fprintf(w, "  Phone:\t%s", c.Phone)
		if tel := model.TelURI(c.Phone); tel != "" {
			fmt.Fprintf(w, "\t%s", tel)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Email:\t%s", c.Email)
		if mailto := model.MailtoURI(c.Email); mailto != "" {
			fmt.Fprintf(w, "\t%s", mailto)
		}
		fmt.Fprintln(w)
	}

	switch {
	case st.Flags.CanComplete:
		fmt.Fprintf(w, "\nA buyer is waiting. Run: sejem complete %s\n", l.ID)
	case st.Flags.CanRequestBuy:
		fmt.Fprintf(w, "\nRun: sejem buy %s\n", l.ID)
	}
	return w.Flush()
}

func cmdBuy(ctx context.Context, args []string) error {
	fs, common := newFlagSet("buy", " <id>", "")
	return withApp(ctx, fs, common, args, func(a *app) error {
		id, err := onlyArg(fs, "listing id")
		if err != nil {
			return err
		}
		vm := detail.New(a.api, a.session)
		if err := vm.Load(ctx, id); err != nil {
			if client.IsNotFound(err) {
				return fmt.Errorf("listing %s not found", id)
			}
			return fmt.Errorf("loading listing: %w", err)
		}

		notice, err := vm.RequestToBuy(ctx)
		if errors.Is(err, detail.ErrAuthRequired) {
			return errors.New("login required, run: sejem login")
		}
		if err != nil {
			return err
		}
		fmt.Println(notice)
		return printDetail(os.Stdout, vm.State())
	})
}

func cmdComplete(ctx context.Context, args []string) error {
	fs, common := newFlagSet("complete", " <id>", "")
	return withApp(ctx, fs, common, args, func(a *app) error {
		id, err := onlyArg(fs, "listing id")
		if err != nil {
			return err
		}
		if _, err := currentUser(ctx, a); err != nil {
			return err
		}
		l, err := a.api.CompleteSale(ctx, id)
		if err != nil {
			return fmt.Errorf("completing sale: %s", client.MessageOf(err, err.Error()))
		}
		if l == nil {
			fmt.Printf("Marked listing %s as sold.\n", id)
			return nil
		}
		fmt.Printf("Marked %q as sold.\n", l.Title)
		return nil
	})
}

func cmdHistory(ctx context.Context, args []string) error {
	fs, common := newFlagSet("history", "", "")
	return withApp(ctx, fs, common, args, func(a *app) error {
		user, err := currentUser(ctx, a)
		if err != nil {
			return err
		}
		listings, err := a.api.ListItems(ctx, client.ListParams{})
		if err != nil {
			return fmt.Errorf("loading listings: %w", err)
		}
		h := catalog.History(listings, user.ID)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Purchases (%d)\n", h.Purchases.Count())
		printRows(w, "pending", h.Purchases.Pending)
		printRows(w, "sold", h.Purchases.Sold)
		fmt.Fprintf(w, "\nSales (%d)\n", h.Sales.Count())
		printRows(w, "pending", h.Sales.Pending)
		printRows(w, "sold", h.Sales.Sold)
		printRows(w, "open", h.Sales.Open)
		fmt.Fprintf(w, "\nSpent %s, earned %s, incoming %s.\n",
			h.Spent.Dollars(), h.Earned.Dollars(), h.Incoming.Dollars())
		return w.Flush()
	})
}

func printRows(w io.Writer, label string, listings []model.Listing) {
	for _, l := range listings {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", l.ID, l.Title, catalog.PriceLabel(l.Price), label)
	}
}

func cmdPost(ctx context.Context, args []string) error {
	fs, common := newFlagSet("post", "", `  -title <text>        listing title (required)
  -price <amount>      price, empty or 0 for free
  -desc <text>         description
  -location <text>     pickup location
  -image <path>        photo to upload
`)
	var d catalog.Draft
	var imagePath string
	fs.StringVar(&d.Title, "title", "", "")
	fs.StringVar(&d.Price, "price", "", "")
	fs.StringVar(&d.Description, "desc", "", "")
	fs.StringVar(&d.Location, "location", "", "")
	fs.StringVar(&imagePath, "image", "", "")

	return withApp(ctx, fs, common, args, func(a *app) error {
		in, fieldErrs := d.Validate()
		if len(fieldErrs) > 0 {
			for field, msg := range fieldErrs {
				fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
			}
			return errUsage
		}

		var upload *imaging.Upload
		if imagePath != "" {
			f, err := os.Open(imagePath)
			if err != nil {
				return fmt.Errorf("opening image: %w", err)
			}
			upload, err = imaging.Prepare(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("preparing image: %w", err)
			}
		}

		if _, err := currentUser(ctx, a); err != nil {
			return err
		}
		l, err := a.api.CreateItem(ctx, in)
		if err != nil {
			return fmt.Errorf("posting listing: %s", client.MessageOf(err, err.Error()))
		}
		if upload != nil {
			if _, err := a.api.UploadImage(ctx, l.ID.String(), upload.Data, upload.MIME); err != nil {
				return fmt.Errorf("listing %s posted, but the image upload failed: %s", l.ID, client.MessageOf(err, err.Error()))
			}
		}
		fmt.Printf("Posted %q as listing %s (%s).\n", l.Title, l.ID, catalog.PriceLabel(l.Price))
		return nil
	})
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.PhoneNotAvailable
	}
	return s
}
