package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/a3tai/mcp-pdf-automap/internal/app"
	"github.com/a3tai/mcp-pdf-automap/internal/automap"
	"github.com/a3tai/mcp-pdf-automap/internal/overlay"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-automap/internal/report"
	"github.com/a3tai/mcp-pdf-automap/internal/schema"
	"github.com/a3tai/mcp-pdf-automap/internal/store"
	"github.com/a3tai/mcp-pdf-automap/internal/transform"
)

func (c *cli) extractCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "extract <pdf>",
		Short: "List the fillable fields of a PDF with top-left point geometry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, data, err := c.readForm(args[0])
			if err != nil {
				return err
			}
			extractor := extraction.NewFieldExtractor(c.cfg.IsDebug())
			fields, err := extractor.ExtractFieldsFromBytes(cmd.Context(), data)
			if err != nil {
				return err
			}
			pages, err := extractor.PageSizesFromBytes(cmd.Context(), data)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), struct {
				Pages  []extraction.PageSize  `json:"pages" yaml:"pages"`
				Fields []extraction.FieldInfo `json:"fields" yaml:"fields"`
			}{pages, fields}, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, yaml")
	return cmd
}

func (c *cli) schemaCmd() *cobra.Command {
	var format, category string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the employee data schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields := schema.EmployeeDataSchema()
			if category != "" {
				fields = schema.ByCategory(schema.Category(category))
				if len(fields) == 0 {
					return fmt.Errorf("unknown category %q", category)
				}
			}
			return write(cmd.OutOrStdout(), fields, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, yaml")
	cmd.Flags().StringVar(&category, "category", "", "Only print fields of this category")
	return cmd
}

func (c *cli) automapCmd() *cobra.Command {
	var format, output, template string
	cmd := &cobra.Command{
		Use:   "automap <pdf>",
		Short: "Map every fillable field of a PDF onto employee data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "xlsx" && output == "" {
				return fmt.Errorf("--output is required for xlsx")
			}
			resolved, data, err := c.readForm(args[0])
			if err != nil {
				return err
			}
			result, err := c.mapForm(cmd.Context(), data)
			if err != nil {
				return err
			}

			if template != "" {
				templates, err := c.openTemplates()
				if err != nil {
					return err
				}
				defer templates.Close()

				pages, err := extraction.NewFieldExtractor(c.cfg.IsDebug()).PageSizesFromBytes(cmd.Context(), data)
				if err != nil {
					return err
				}
				saved, err := templates.Save(cmd.Context(), template, resolved, len(pages), result)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved template %s (%s)\n", saved.Name, saved.ID)
			}

			if n := result.ReviewCount(); n > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d mappings need review\n", n, len(result.Fields))
			}
			return writeResult(cmd.OutOrStdout(), result, format, output)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, yaml, xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&template, "template", "", "Save the mapping as a template under this name (needs --db)")
	return cmd
}

func (c *cli) overlayCmd() *cobra.Command {
	var template, format string
	var pageSizes []string
	cmd := &cobra.Command{
		Use:   "overlay <pdf>",
		Short: "Position mapped fields as percentage boxes over the pages of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, data, err := c.readForm(args[0])
			if err != nil {
				return err
			}
			pages, err := extraction.NewFieldExtractor(c.cfg.IsDebug()).PageSizesFromBytes(cmd.Context(), data)
			if err != nil {
				return err
			}
			if err := applyPageSizes(pages, pageSizes); err != nil {
				return err
			}

			fields, err := c.fieldsFor(cmd.Context(), template, data)
			if err != nil {
				return err
			}

			tracker := overlay.NewTracker(len(pages))
			for _, p := range pages {
				if err := tracker.PageLoaded(p.Page, p.Width, p.Height); err != nil {
					return err
				}
			}
			overlays := tracker.Overlays(overlay.FromMapped(fields, pages))
			if overlays == nil {
				return errors.New("document has no pages to position fields on")
			}
			return write(cmd.OutOrStdout(), overlays, format)
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "Use a saved template instead of mapping again (needs --db)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, yaml")
	cmd.Flags().StringArrayVar(&pageSizes, "page-size", nil, "Override the size of one page in points, as PAGE:WIDTHxHEIGHT (repeatable)")
	return cmd
}

// applyPageSizes overrides page sizes from PAGE:WIDTHxHEIGHT specs
func applyPageSizes(pages []extraction.PageSize, specs []string) error {
	for _, spec := range specs {
		page, size, ok := strings.Cut(spec, ":")
		if !ok {
			return fmt.Errorf("invalid page size %q (want PAGE:WIDTHxHEIGHT)", spec)
		}
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 || n > len(pages) {
			return fmt.Errorf("invalid page in %q (document has %d pages)", spec, len(pages))
		}
		w, h, ok := strings.Cut(strings.ToLower(size), "x")
		if !ok {
			return fmt.Errorf("invalid page size %q (want PAGE:WIDTHxHEIGHT)", spec)
		}
		width, err := strconv.ParseFloat(w, 64)
		if err != nil || width <= 0 {
			return fmt.Errorf("invalid width in %q", spec)
		}
		height, err := strconv.ParseFloat(h, 64)
		if err != nil || height <= 0 {
			return fmt.Errorf("invalid height in %q", spec)
		}
		pages[n-1].Width, pages[n-1].Height = width, height
	}
	return nil
}

func (c *cli) resolveCmd() *cobra.Command {
	var template, employee, format string
	cmd := &cobra.Command{
		Use:   "resolve [pdf]",
		Short: "Compute the value of every PDF field for one employee record",
		Long: "Resolve reads an employee record (JSON or YAML, '-' for stdin) and prints the value each PDF\n" +
			"field receives, using a saved template or a fresh mapping of the given PDF.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (template == "") == (len(args) == 0) {
				return errors.New("give either a PDF or --template")
			}
			record, err := readRecord(cmd.InOrStdin(), employee)
			if err != nil {
				return err
			}

			var data []byte
			if len(args) == 1 {
				if _, data, err = c.readForm(args[0]); err != nil {
					return err
				}
			}
			fields, err := c.fieldsFor(cmd.Context(), template, data)
			if err != nil {
				return err
			}

			values, err := transform.ResolveAll(fields, record)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), values, format)
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "Saved template id or name (needs --db)")
	cmd.Flags().StringVar(&employee, "employee", "-", "Employee record file, JSON or YAML")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, yaml")
	return cmd
}

// readRecord decodes an employee record from path, or from stdin when path is "-"
func readRecord(stdin io.Reader, path string) (transform.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read employee record: %w", err)
	}

	var record transform.Record
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("employee record must be a JSON or YAML object: %w", err)
	}
	if record == nil {
		return nil, errors.New("employee record is empty")
	}
	return record, nil
}

func (c *cli) templatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage saved mapping templates (needs --db)",
	}

	var format string
	get := &cobra.Command{
		Use:   "get <id|name>",
		Short: "Print a saved template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withTemplates(func(templates *store.Store) error {
				t, err := templates.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return write(cmd.OutOrStdout(), t, format)
			})
		},
	}
	get.Flags().StringVar(&format, "format", "json", "Output format: json, yaml")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved templates, most recently updated first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withTemplates(func(templates *store.Store) error {
					list, err := templates.List(cmd.Context())
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					if len(list) == 0 {
						fmt.Fprintln(out, "No saved templates")
						return nil
					}
					for _, t := range list {
						fmt.Fprintf(out, "%s  %-30s  %3d fields  %3d to review  %s\n",
							t.ID, t.Name, t.FieldCount, t.ReviewCount, t.UpdatedAt.Format("2006-01-02 15:04"))
					}
					return nil
				})
			},
		},
		get,
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a saved template",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withTemplates(func(templates *store.Store) error {
					if err := templates.Delete(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

func (c *cli) reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a saved template in a spreadsheet (needs --db)",
	}

	var output string
	export := &cobra.Command{
		Use:   "export <id|name>",
		Short: "Write a template as a review workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withTemplates(func(templates *store.Store) error {
				t, err := templates.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				result := &automap.Result{
					Fields:              t.Fields,
					UnmappedPDFFields:   t.UnmappedPDFFields,
					MissingEmployeeData: []string{},
					Warnings:            t.Warnings,
				}
				return writeResult(cmd.OutOrStdout(), result, "xlsx", output)
			})
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "Workbook file to write")
	_ = export.MarkFlagRequired("output")

	importCmd := &cobra.Command{
		Use:   "import <id|name> <workbook.xlsx>",
		Short: "Replace the fields of a template with the rows of an edited review workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open workbook: %w", err)
			}
			defer f.Close()

			fields, err := report.ReadXLSX(f)
			if err != nil {
				return err
			}
			return c.withTemplates(func(templates *store.Store) error {
				t, err := templates.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				updated, err := templates.UpdateFields(cmd.Context(), t.ID, fields)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated template %s: %d fields, %d to review\n",
					updated.Name, len(updated.Fields), updated.ReviewCount)
				return nil
			})
		},
	}

	cmd.AddCommand(export, importCmd)
	return cmd
}

// mapForm runs the configured mapper over a PDF
func (c *cli) mapForm(ctx context.Context, data []byte) (*automap.Result, error) {
	mapper, err := app.NewMapper(c.cfg)
	if err != nil {
		return nil, err
	}
	extractor := extraction.NewFieldExtractor(c.cfg.IsDebug())
	return automap.NewPipeline(extractor, mapper, c.cfg.IsDebug()).AutoMapPDF(ctx, data)
}

// fieldsFor loads the fields of a saved template, or maps data when template is empty
func (c *cli) fieldsFor(ctx context.Context, template string, data []byte) ([]automap.MappedField, error) {
	if template == "" {
		result, err := c.mapForm(ctx, data)
		if err != nil {
			return nil, err
		}
		return result.Fields, nil
	}

	var fields []automap.MappedField
	err := c.withTemplates(func(templates *store.Store) error {
		t, err := templates.Get(ctx, template)
		if err != nil {
			return err
		}
		fields = t.Fields
		return nil
	})
	return fields, err
}

func (c *cli) openTemplates() (*store.Store, error) {
	templates, err := app.OpenTemplates(c.cfg)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		return nil, errors.New("templates need a database; pass --db or set PDF_AUTOMAP_DB")
	}
	return templates, nil
}

func (c *cli) withTemplates(fn func(*store.Store) error) error {
	templates, err := c.openTemplates()
	if err != nil {
		return err
	}
	defer templates.Close()
	return fn(templates)
}
