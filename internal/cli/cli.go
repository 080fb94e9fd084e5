package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/finscrape/finscrape/internal/config"
	"github.com/finscrape/finscrape/internal/fetch"
	"github.com/finscrape/finscrape/internal/logger"
	"github.com/finscrape/finscrape/internal/scraper"
	"github.com/finscrape/finscrape/internal/server"
	"github.com/finscrape/finscrape/internal/sheet"
	"github.com/finscrape/finscrape/internal/site"
	"github.com/finscrape/finscrape/internal/username"
)

const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitNoMatches = 2
)

// ErrNoMatches is returned with --fail-empty when the selector matched nothing.
var ErrNoMatches = errors.New("selector matched nothing")

var (
	flagVerbose   bool
	flagTimeout   time.Duration
	flagSitesFile string
	flagEnvFile   string
	flagLenient   bool
	flagUserAgent string
)

// app is the state shared by subcommands once flags and config are resolved.
type app struct {
	cfg       *config.Config
	catalogue *site.Catalogue
	fetcher   fetch.Fetcher
	stdout    io.Writer
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finscrape",
		Short: "Scrape balance sheets and name lists from financial web pages",
		Long: `A CLI tool that fetches MarketWatch, Yahoo Finance and Zacks balance sheet
pages, extracts line items with versioned selectors and prints them, or serves
them as JSON over HTTP.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
	cmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "HTTP timeout (default 30s or FINSCRAPE_TIMEOUT)")
	cmd.PersistentFlags().StringVar(&flagSitesFile, "sites-file", "", "YAML file overriding site selectors")
	cmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", config.DefaultEnvFile, "Environment file to load if present")
	cmd.PersistentFlags().BoolVar(&flagLenient, "lenient", false, "Parse non-2xx responses instead of failing")
	cmd.PersistentFlags().StringVar(&flagUserAgent, "user-agent", "", "Override the User-Agent header")

	cmd.AddCommand(
		newBalanceSheetCmd(a),
		newNamesCmd(a),
		newUsernamesCmd(a),
		newServeCmd(a),
		newSitesCmd(a),
	)

	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(flagEnvFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagSitesFile != "" {
		cfg.SitesFile = flagSitesFile
	}
	if flagTimeout > 0 {
		cfg.Timeout = flagTimeout
	}
	if flagUserAgent != "" {
		cfg.UserAgent = flagUserAgent
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if flagVerbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(level, os.Stderr))

	cat, err := cfg.Catalogue()
	if err != nil {
		return fmt.Errorf("loading sites: %w", err)
	}

	a.cfg = cfg
	a.catalogue = cat
	if a.fetcher == nil {
		a.fetcher = fetch.New(
			fetch.WithTimeout(cfg.Timeout),
			fetch.WithUserAgent(cfg.UserAgent),
			fetch.WithLenient(flagLenient),
		)
	}
	if a.stdout == nil {
		a.stdout = cmd.OutOrStdout()
	}

	logger.Debug("config resolved", logger.Fields{
		"site":       cfg.Site,
		"ticker":     cfg.Ticker,
		"timeout":    cfg.Timeout.String(),
		"sites_file": cfg.SitesFile,
	})
	return nil
}

// scrape looks up a site, optionally replaces its URL, and runs one scrape.
func (a *app) scrape(ctx context.Context, siteName, ticker, url string) (*sheet.Sheet, site.Site, error) {
	st, err := a.catalogue.Lookup(siteName)
	if err != nil {
		return nil, site.Site{}, err
	}
	if url != "" {
		st.URLTemplate = url
	}

	sh, err := scraper.New(a.fetcher, st).Scrape(ctx, ticker)
	if err != nil {
		return nil, st, err
	}
	return sh, st, nil
}

func newBalanceSheetCmd(a *app) *cobra.Command {
	var (
		siteName  string
		ticker    string
		format    string
		out       string
		failEmpty bool
	)

	cmd := &cobra.Command{
		Use:     "balance-sheet",
		Aliases: []string{"bs"},
		Short:   "Scrape a balance sheet for a ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("site") {
				siteName = a.cfg.Site
			}
			if !cmd.Flags().Changed("ticker") {
				ticker = a.cfg.Ticker
			}
			ticker = strings.TrimSpace(ticker)
			if ticker == "" {
				return fmt.Errorf("--ticker is required")
			}

			f, err := ParseFormat(format)
			if err != nil {
				return err
			}

			sh, st, err := a.scrape(cmd.Context(), siteName, ticker, "")
			if err != nil {
				return err
			}

			if err := a.write(out, func(w io.Writer) error {
				return WriteOutput(w, sh, st.Rule, f)
			}); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}

			if failEmpty && sh.Empty() {
				return ErrNoMatches
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&siteName, "site", config.DefaultSite, "Site to scrape (marketwatch, yahoo, zacks)")
	cmd.Flags().StringVar(&ticker, "ticker", site.DefaultTicker, "Ticker symbol")
	cmd.Flags().StringVar(&format, "format", string(FormatText), "Output format: text, json, table or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write output to a file instead of stdout")
	cmd.Flags().BoolVar(&failEmpty, "fail-empty", false, "Exit with status 2 when the selector matches nothing")

	return cmd
}

func newNamesCmd(a *app) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "names",
		Short: "Print the names scraped from the name-list page",
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, st, err := a.scrape(cmd.Context(), "names", "", url)
			if err != nil {
				return err
			}
			return WriteOutput(a.stdout, sh, st.Rule, FormatText)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Override the name-list page URL")
	return cmd
}

func newUsernamesCmd(a *app) *cobra.Command {
	var (
		url       string
		seed      uint64
		showNames bool
	)

	cmd := &cobra.Command{
		Use:   "usernames",
		Short: "Generate a random username for each scraped name",
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, _, err := a.scrape(cmd.Context(), "names", "", url)
			if err != nil {
				return err
			}

			var gen *username.Generator
			if cmd.Flags().Changed("seed") {
				gen = username.NewWithSeed(seed)
			} else {
				gen, err = username.NewSeeded()
				if err != nil {
					return err
				}
			}

			names := sh.Items()
			if showNames {
				for _, name := range names {
					fmt.Fprintln(a.stdout, name)
				}
			}
			for _, u := range gen.GenerateAll(names) {
				fmt.Fprintln(a.stdout, u)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Override the name-list page URL")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for a reproducible username stream")
	cmd.Flags().BoolVar(&showNames, "show-names", true, "Print the scraped names before the usernames")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		siteName string
		ticker   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the balance sheet of one ticker as JSON on GET /",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Addr
			}
			if !cmd.Flags().Changed("site") {
				siteName = a.cfg.Site
			}
			if !cmd.Flags().Changed("ticker") {
				ticker = a.cfg.Ticker
			}

			srv, err := server.New(a.catalogue, a.fetcher, siteName, ticker)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "Listen address")
	cmd.Flags().StringVar(&siteName, "site", config.DefaultSite, "Site served on /")
	cmd.Flags().StringVar(&ticker, "ticker", site.DefaultTicker, "Ticker served on /")
	return cmd
}

func newSitesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List the known sites and their selector versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(a.stdout)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Site", "Rule", "Version", "Selector", "URL"})
			for _, s := range a.catalogue.Sites() {
				t.AppendRow(table.Row{s.Name, string(s.Rule), s.Selector.Version, s.Selector.String(), s.URLTemplate})
			}
			t.Render()
			return nil
		},
	}
}

// write runs fn against the output file, or stdout when path is empty.
func (a *app) write(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(a.stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrNoMatches):
		return ExitNoMatches
	default:
		return ExitError
	}
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(ExitCode(err))
}
