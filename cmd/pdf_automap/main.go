// Command pdf_automap maps PDF forms onto the employee data schema from the command line and
// manages saved mapping templates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/a3tai/mcp-pdf-automap/internal/automap"
	"github.com/a3tai/mcp-pdf-automap/internal/config"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf"
	"github.com/a3tai/mcp-pdf-automap/internal/report"
)

var version = "dev" // This will be set by build flags

// cli carries the configuration resolved before every subcommand runs
type cli struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "pdf_automap",
		Short:         "Map PDF form fields onto employee data",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromFlagSet(cmd.Flags())
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags(), config.DefaultConfig())

	root.AddCommand(
		c.extractCmd(),
		c.schemaCmd(),
		c.automapCmd(),
		c.overlayCmd(),
		c.resolveCmd(),
		c.templatesCmd(),
		c.reviewCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// readForm loads a PDF from anywhere on disk with the usual extension and size checks
func (c *cli) readForm(path string) (string, []byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	svc, err := pdf.NewService(c.cfg.MaxFileSize, filepath.Dir(abs))
	if err != nil {
		return "", nil, err
	}
	return svc.ReadForm(filepath.Base(abs))
}

// write renders v to w as indented JSON or YAML
func write(w io.Writer, v any, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		out, err := report.YAML(v)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported format %q (use json or yaml)", format)
	}
}

// writeResult renders a mapping result to output, or to w when output is empty. The xlsx
// format writes the review workbook and needs an output file.
func writeResult(w io.Writer, result *automap.Result, format, output string) (err error) {
	if format == "xlsx" && output == "" {
		return fmt.Errorf("--output is required for xlsx")
	}
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if format == "xlsx" {
		return report.WriteXLSX(w, result)
	}
	return write(w, result, format)
}
