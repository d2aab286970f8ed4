// Command portfolioctl manages the portfolio knowledge base from a terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/arturoeanton/portfolio-assistant/internal/app"
	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/logging"
	"github.com/arturoeanton/portfolio-assistant/internal/service"
	"github.com/arturoeanton/portfolio-assistant/pkg/config"
)

const usage = `Usage: portfolioctl <command> [arguments]

Commands:
  setup                     create the vector index and print its stats
  stats                     print record counts per namespace
  list                      list indexed documents
  upload <file> [source]    index a TXT or Markdown file
  purge [--force]           delete every record in the configured namespace
`

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
)

var errUsage = errors.New("usage")

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stderr, cfg.LogFormat, "warn"))

	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			errColor.Fprintf(os.Stderr, "✗ %v\n\n", err)
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		errColor.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "setup", "stats", "list", "upload", "purge":
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	return dispatch(ctx, deps, cmd, rest, out)
}

func dispatch(ctx context.Context, deps *app.Components, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "setup":
		okColor.Fprintf(out, "✓ index %q ready (%s, dimension %d)\n",
			deps.Config.VectorIndexName, deps.Config.VectorStore, deps.Embedder.Dimension())
		return printStats(ctx, deps.Docs, out)
	case "stats":
		return printStats(ctx, deps.Docs, out)
	case "list":
		return printDocuments(ctx, deps.Docs, out)
	case "upload":
		return upload(ctx, deps.Docs, args, out)
	case "purge":
		return purge(ctx, deps.Docs, args, out)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func printStats(ctx context.Context, docs *service.DocumentService, out io.Writer) error {
	stats, err := docs.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Total records: %d\n", stats.TotalRecordCount)

	names := make([]string, 0, len(stats.Namespaces))
	for ns := range stats.Namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	for _, ns := range names {
		label := ns
		if label == "" {
			label = "(default)"
		}
		fmt.Fprintf(out, "  %-20s %d\n", label, stats.Namespaces[ns].RecordCount)
	}
	return nil
}

func printDocuments(ctx context.Context, docs *service.DocumentService, out io.Writer) error {
	list, err := docs.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		dimColor.Fprintln(out, "No documents indexed.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tFILE\tTYPE\tCHUNKS\tWORDS\tUPLOADED")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			d.Source, d.FileName, d.FileType, d.ChunkCount, d.WordCount, d.UploadedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func upload(ctx context.Context, docs *service.DocumentService, args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: upload <file> [source]", errUsage)
	}
	path := args[0]
	source := service.DefaultSource
	if len(args) == 2 {
		source = args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	res, err := docs.Upload(ctx, domain.UploadFile{
		Name:        name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Data:        data,
	}, source)
	if err != nil {
		return err
	}
	okColor.Fprintf(out, "✓ %s indexed as %q: %d chunks\n", res.FileName, res.Source, res.ChunksProcessed)
	return nil
}

func purge(ctx context.Context, docs *service.DocumentService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	force := fs.Bool("force", false, "delete without confirmation")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: purge [--force]", errUsage)
	}

	if err := printStats(ctx, docs, out); err != nil {
		return err
	}
	if !*force {
		warnColor.Fprintln(out, "! dry run: re-run with --force to delete every record")
		return nil
	}

	if err := docs.DeleteAll(ctx); err != nil {
		return err
	}
	okColor.Fprintln(out, "✓ all records deleted")
	return nil
}
