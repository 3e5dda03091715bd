package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"FinScreen/internal/di"
	"FinScreen/internal/domain/models"
	"FinScreen/internal/services/results"
	xhttp "FinScreen/pkg/http"
)

var errUsage = errors.New("usage")

type cli struct {
	s      *di.Screener
	out    io.Writer
	errOut io.Writer
}

func dispatch(ctx context.Context, c *cli, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "register":
		return c.register(ctx, args)
	case "logout":
		c.s.Auth.Logout(ctx)
		fmt.Fprintln(c.out, "logged out")
		return nil
	case "whoami":
		return c.whoami(ctx)
	case "indices":
		return c.indices(ctx)
	case "config":
		return c.showConfig(ctx)
	case "set":
		return c.set(ctx, args)
	case "import":
		return c.importCSV(ctx, args)
	case "run":
		return c.run(ctx, args)
	case "logs":
		text, err := c.s.Backend.Logs(ctx)
		if err != nil {
			return describe(err)
		}
		fmt.Fprintln(c.out, text)
		return nil
	case "clear-cache":
		if err := c.s.Backend.ClearCache(ctx); err != nil {
			return describe(err)
		}
		fmt.Fprintln(c.out, "backend cache cleared")
		return nil
	}
	return errUsage
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("FINSCREEN_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *email == "" || *password == "" {
		return errUsage
	}
	u, err := c.s.Auth.Login(ctx, *email, *password)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(c.out, "logged in as %s\n", u.Username)
	if !u.IsActive {
		fmt.Fprintln(c.out, "email not confirmed yet: screening stays disabled until it is")
	}
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var req models.RegisterRequest
	fs.StringVar(&req.Username, "username", "", "user name")
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.Password, "password", os.Getenv("FINSCREEN_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := xhttp.ValidateStruct(ctx, req); err != nil {
		return describe(err)
	}
	u, err := c.s.Auth.Register(ctx, req)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(c.out, "registered and logged in as %s; check %s for the confirmation link\n", u.Username, req.Email)
	return nil
}

func (c *cli) whoami(ctx context.Context) error {
	if err := c.s.Auth.Initialize(ctx); err != nil {
		return describe(err)
	}
	sess := c.s.Auth.Session()
	if !sess.Authenticated {
		fmt.Fprintln(c.out, "not logged in")
		return nil
	}
	fmt.Fprintf(c.out, "%s <%s> email confirmed: %t\n", sess.User.Username, sess.User.Email, sess.EmailConfirmed)
	return nil
}

func (c *cli) indices(ctx context.Context) error {
	idx, err := c.s.Backend.Indices(ctx)
	if err != nil {
		return describe(err)
	}
	names := make([]string, 0, len(idx))
	for name := range idx {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tSUFFIX\tSYMBOLS")
	for _, name := range names {
		e := idx[name]
		fmt.Fprintf(tw, "%s\t%s\t%d\n", name, e.ExchangeSuffix, len(e.Symbols))
	}
	return tw.Flush()
}

func (c *cli) loadConfig(ctx context.Context) error {
	if err := c.s.Config.Load(ctx); err != nil {
		return describe(err)
	}
	return c.s.Config.LoadAvailableFeatures(ctx)
}

func (c *cli) showConfig(ctx context.Context) error {
	if err := c.loadConfig(ctx); err != nil {
		return err
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(c.s.Config.Snapshot())
}

func (c *cli) set(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := c.loadConfig(ctx); err != nil {
		return err
	}
	if err := c.s.Config.SetField(ctx, models.ConfigField(args[0]), parseValue(args[1])); err != nil {
		return describe(err)
	}
	fmt.Fprintf(c.out, "%s updated\n", args[0])
	return nil
}

// parseValue reads a command line value as JSON, falling back to the raw
// string so `set symbols_text AAPL, MSFT` needs no quoting.
func parseValue(s string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func (c *cli) importCSV(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if err := c.loadConfig(ctx); err != nil {
		return err
	}
	symbols, err := c.s.Symbols.ImportCSV(ctx, f)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(c.out, "loaded %d symbols: %s\n", len(symbols), strings.Join(symbols, ", "))
	return nil
}

func (c *cli) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	filter := fs.String("filter", "", "comma separated recommendations to keep")
	sortKey := fs.String("sort", "", "column to sort by")
	desc := fs.Bool("desc", false, "sort descending")
	out := fs.String("out", "", "write the table to this CSV file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := c.s.Auth.Initialize(ctx); err != nil {
		return describe(err)
	}
	if err := c.loadConfig(ctx); err != nil {
		return err
	}

	summary, err := c.s.Runs.Run(ctx)
	if err != nil {
		return describe(err)
	}

	q := results.Query{Recommendations: splitList(*filter), SortKey: *sortKey, Desc: *desc}
	rows, selected := c.s.Runs.Table(q)
	if err := printTable(c.out, rows, selected); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nrun %s: %d rows, %d converged in %s\n",
		summary.RunID, summary.Rows, summary.Converged, summary.Duration().Round(time.Millisecond))

	if *out == "" || len(rows) == 0 {
		return nil
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := c.s.Runs.Export(f, q); err != nil {
		f.Close()
		return describe(err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "exported to %s\n", *out)
	return nil
}

var tableColumns = []string{
	results.ColStock,
	results.ColRecommendation,
	results.ColConverged,
	"Total Return (%)",
	"Sharpe Ratio",
	"Max Drawdown (%)",
	"Current Regime",
}

func printTable(w io.Writer, rows []models.ResultRow, selected string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, " \t"+strings.Join(tableColumns, "\t"))
	for _, r := range rows {
		mark := " "
		if selected != "" && strings.EqualFold(r.Stock, selected) {
			mark = "*"
		}
		cells := make([]string, len(tableColumns))
		for i, key := range tableColumns {
			cells[i] = results.FormatCell(key, r.Get(key))
		}
		fmt.Fprintln(tw, mark+"\t"+strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// describe flattens an error chain into the message a user should see.
func describe(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(xhttp.ErrorDetail(err))
}
