package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-buku/internal/app"
	"github.com/noah-isme/toko-buku/internal/checkout"
	"github.com/noah-isme/toko-buku/internal/config"
	"github.com/noah-isme/toko-buku/internal/pricing"
)

// quote prices a cart file and prints the breakdown.
// Exit code 0 = ok, 1 = invalid cart, 2 = other error.
func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "-", "cart JSON file, - for stdin")
	user := fs.String("user", "", "price as this user (API mode only)")
	at := fs.String("at", "", "pricing date as YYYY-MM-DD for the seasonal promotion (API mode), defaults to today")
	asJSON := fs.Bool("json", false, "print the raw result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	payload, err := readCart(*file, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "quote: %v\n", err)
		return 2
	}

	engine, err := buildEngine(*user, *at)
	if err != nil {
		fmt.Fprintf(stderr, "quote: %v\n", err)
		return 2
	}

	result, err := engine.Compute(context.Background(), payload.PricingRequest(*user))
	if err != nil {
		fmt.Fprintf(stderr, "quote: %v\n", err)
		if errors.Is(err, pricing.ErrInvalidInput) {
			return 1
		}
		return 2
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return 2
		}
		return 0
	}
	printBreakdown(stdout, engine.Mode(), pricing.Present(result))
	return 0
}

func readCart(path string, stdin io.Reader) (checkout.QuoteRequest, error) {
	var payload checkout.QuoteRequest
	var src io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return payload, err
		}
		defer f.Close()
		src = f
	}
	if err := json.NewDecoder(src).Decode(&payload); err != nil {
		return payload, fmt.Errorf("decode cart: %w", err)
	}
	return payload, nil
}

// buildEngine runs locally unless a user is given, in which case the
// environment's pricing configuration decides. -at pins the clock the engine
// uses for the seasonal promotion, read in the configured time zone. Local
// pricing never applies the promotion, so there the date is only validated.
func buildEngine(user, at string) (*pricing.Engine, error) {
	if strings.TrimSpace(user) == "" {
		if _, err := parseDay(at, time.UTC); err != nil {
			return nil, err
		}
		return pricing.NewEngine(pricing.EngineConfig{Mode: pricing.ModeLocal})
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	var opts []app.Option
	day, err := parseDay(at, cfg.Location())
	if err != nil {
		return nil, err
	}
	if !day.IsZero() {
		opts = append(opts, app.WithClock(func() time.Time { return day }))
	}
	deps, err := app.Build(cfg, nil, zerolog.New(os.Stderr).With().Timestamp().Logger(), opts...)
	if err != nil {
		return nil, err
	}
	return deps.Engine, nil
}

// parseDay returns noon of the given YYYY-MM-DD in loc, or the zero time when
// value is empty.
func parseDay(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse -at: %w", err)
	}
	return day.Add(12 * time.Hour), nil
}

func printBreakdown(w io.Writer, mode pricing.Mode, b pricing.Breakdown) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, row := range b.Rows {
		fmt.Fprintf(tw, "%s\t%s\t\n", row.Label, row.Display)
	}
	if b.StrikeOriginal {
		fmt.Fprintf(tw, "%s\t%s\t\n", "Giá gốc", b.OriginalTotal)
	}
	fmt.Fprintf(tw, "%s\t%s\t\n", "Tổng cộng", b.Total)
	if b.Savings != "" {
		fmt.Fprintf(tw, "%s\t%s (%d%%)\t\n", "Tiết kiệm", b.Savings, b.SavingsPercent)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "mode: %s\n", mode)
}
