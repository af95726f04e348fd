// Package cli is billctl, the operator's command line for looking up
// products, documents and reports without the counter UI.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"billdesk/terminal/internal/app"
	"billdesk/terminal/internal/config"
	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/listing"
	"billdesk/terminal/internal/receipt"
	"billdesk/terminal/internal/service"
)

// Backend is what the commands need from the service layer.
type Backend interface {
	SearchProducts(ctx context.Context, term string) ([]domain.Product, *domain.Notice)
	ListDocuments(ctx context.Context, f listing.Filter, page, perPage int) (listing.Page, error)
	ExportDocuments(ctx context.Context, w io.Writer, f listing.Filter) error
	Receipt(ctx context.Context, variant domain.Variant, number string) (receipt.Layout, error)
	Reports(ctx context.Context, rng domain.ReportRange) (service.ReportView, error)
}

type root struct {
	v       *viper.Viper
	backend Backend
	closeFn func()
}

// NewRootCommand builds billctl. A nil backend is wired from the
// environment on first use.
func NewRootCommand(backend Backend) *cobra.Command {
	r := &root{v: viper.New(), backend: backend}

	cmd := &cobra.Command{
		Use:           "billctl",
		Short:         "Billing terminal operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile := r.v.GetString("config"); cfgFile != "" {
				r.v.SetConfigFile(cfgFile)
				if err := r.v.ReadInConfig(); err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if r.closeFn != nil {
				r.closeFn()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (yaml, toml or json)")
	flags.String("api-url", "", "billing server base URL (overrides API_BASE_URL)")
	flags.String("log-level", "warn", "log level")
	flags.Bool("json", false, "print JSON instead of tables")
	for _, name := range []string{"config", "api-url", "log-level", "json"} {
		_ = r.v.BindPFlag(name, flags.Lookup(name))
	}
	r.v.SetEnvPrefix("BILLCTL")
	r.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	r.v.AutomaticEnv()

	cmd.AddCommand(
		r.productsCommand(),
		r.documentsCommand(),
		r.reportsCommand(),
		hashPasswordCommand(),
	)
	return cmd
}

// Execute runs billctl against the configured environment.
func Execute(ctx context.Context) error {
	return NewRootCommand(nil).ExecuteContext(ctx)
}

func (r *root) service(ctx context.Context) (Backend, error) {
	if r.backend != nil {
		return r.backend, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if url := r.v.GetString("api-url"); url != "" {
		cfg.APIBaseURL = strings.TrimRight(url, "/")
	}
	logger := app.NewLogger(os.Stderr, r.v.GetString("log-level"), cfg.LogFormat)
	slog.SetDefault(logger)

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	r.backend = rt.Service
	r.closeFn = rt.Close
	return r.backend, nil
}

func (r *root) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *root) productsCommand() *cobra.Command {
	products := &cobra.Command{Use: "products", Short: "Product catalog"}
	products.AddCommand(&cobra.Command{
		Use:   "search <term>",
		Short: "Search products by name, IMEI or category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := r.service(cmd.Context())
			if err != nil {
				return err
			}
			found, notice := backend.SearchProducts(cmd.Context(), args[0])
			if notice != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), notice.Message)
			}
			out := cmd.OutOrStdout()
			if r.v.GetBool("json") {
				return r.printJSON(out, found)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
			for _, p := range found {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.DisplayCategory(), p.SellingPrice.StringFixed(2), p.Stock)
			}
			return tw.Flush()
		},
	})
	return products
}

type filterFlags struct {
	variant  string
	customer string
	date     string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.variant, "type", "", "invoice, proforma or service")
	cmd.Flags().StringVar(&f.customer, "customer", "", "customer name contains")
	cmd.Flags().StringVar(&f.date, "date", "", "created on (YYYY-MM-DD)")
}

func (f *filterFlags) filter() (listing.Filter, error) {
	out := listing.Filter{Customer: f.customer}
	if f.variant != "" {
		v, ok := domain.ParseVariant(f.variant)
		if !ok {
			return out, domain.ErrInvalidVariant
		}
		out.Variant = v
	}
	if f.date != "" {
		d, err := time.Parse(time.DateOnly, f.date)
		if err != nil {
			return out, fmt.Errorf("--date: %w", err)
		}
		out.Date = d
	}
	return out, nil
}

func (r *root) documentsCommand() *cobra.Command {
	docs := &cobra.Command{Use: "documents", Short: "Saved invoices, proformas and service records"}

	var listFilter filterFlags
	var page, perPage int
	list := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := listFilter.filter()
			if err != nil {
				return err
			}
			backend, err := r.service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := backend.ListDocuments(cmd.Context(), f, page, perPage)
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			if r.v.GetBool("json") {
				return r.printJSON(out, result)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tNUMBER\tDATE\tCUSTOMER\tTOTAL")
			for _, d := range result.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Variant, d.Number, d.CreatedAt.Format(time.DateOnly), d.CustomerName, d.GrandTotal.StringFixed(2))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out, result.Info())
			return nil
		},
	}
	listFilter.bind(list)
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&perPage, "per-page", listing.DefaultPerPage, "rows per page")

	var exportFilter filterFlags
	var outPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export documents as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := exportFilter.filter()
			if err != nil {
				return err
			}
			backend, err := r.service(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				file, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			if err := backend.ExportDocuments(cmd.Context(), w, f); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			return nil
		},
	}
	exportFilter.bind(export)
	export.Flags().StringVarP(&outPath, "output", "o", "-", "output file")

	var format string
	show := &cobra.Command{
		Use:   "receipt <type> <number>",
		Short: "Render a saved document's receipt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, ok := domain.ParseVariant(args[0])
			if !ok {
				return domain.ErrInvalidVariant
			}
			backend, err := r.service(cmd.Context())
			if err != nil {
				return err
			}
			layout, err := backend.Receipt(cmd.Context(), variant, args[1])
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			switch format {
			case "html":
				page, err := layout.HTML()
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, page)
				return err
			case "escpos":
				_, err := out.Write(layout.ESCPOS())
				return err
			default:
				_, err := io.WriteString(out, layout.Text())
				return err
			}
		},
	}
	show.Flags().StringVar(&format, "format", "text", "text, html or escpos")

	docs.AddCommand(list, export, show)
	return docs
}

func (r *root) reportsCommand() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Sales summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rng domain.ReportRange
			for flag, pair := range map[string]struct {
				raw  string
				dest *time.Time
			}{"start": {start, &rng.Start}, "end": {end, &rng.End}} {
				if pair.raw == "" {
					continue
				}
				parsed, err := time.Parse(time.DateOnly, pair.raw)
				if err != nil {
					return fmt.Errorf("--%s: %w", flag, err)
				}
				*pair.dest = parsed
			}
			backend, err := r.service(cmd.Context())
			if err != nil {
				return err
			}
			view, err := backend.Reports(cmd.Context(), rng)
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			if r.v.GetBool("json") {
				return r.printJSON(out, view)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, line := range view.Lines {
				fmt.Fprintf(tw, "%s\t%s\n", line.Label, line.Value)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "from date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "to date (YYYY-MM-DD)")
	return cmd
}

// hashPasswordCommand prints a bcrypt hash for TERMINAL_OPERATORS.
func hashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for an operator password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}
