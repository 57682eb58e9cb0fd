package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"food-explorer/pkg/cache"
	"food-explorer/pkg/catalog"
	"food-explorer/pkg/models"
	"food-explorer/pkg/pagecapture"

	"github.com/spf13/cobra"
)

func (c *cli) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Long: `init writes the current settings (defaults, the existing file and
environment overrides) to the --config path as a starting point for editing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.configPath == "" {
				return errors.New("no config path given")
			}
			if _, err := os.Stat(c.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", c.configPath)
			}
			if err := c.cfg.Save(c.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", c.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func (c *cli) browseCmd() *cobra.Command {
	var (
		pages    int
		category string
		sortBy   string
		order    string
	)
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "List products page by page",
		Example: `  explorer browse --pages 2
  explorer browse --category snacks --sort grade`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := c.newSource(nil)
			if err != nil {
				return err
			}
			p := catalog.New(src, c.pipelineOptions()...)
			ctx := cmd.Context()

			if _, err := p.FetchPage(ctx, 1, false); err != nil {
				return err
			}
			for i := 1; i < pages; i++ {
				_, loaded, err := p.LoadMore(ctx)
				if err != nil {
					return err
				}
				if !loaded {
					break
				}
			}

			key, ord := catalog.SortKey(sortBy), catalog.SortOrder(order)
			view, err := p.Update(ctx, catalog.Change{
				SelectedCategory: &category,
				SortBy:           &key,
				SortOrder:        &ord,
			})
			if err != nil {
				return err
			}
			return printView(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	cmd.Flags().StringVar(&category, "category", "", "Keep products whose categories contain this text")
	addSortFlags(cmd, &sortBy, &order)
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var sortBy, order string
	cmd := &cobra.Command{
		Use:   "search [terms]",
		Short: "Search products by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := c.newSource(nil)
			if err != nil {
				return err
			}
			p := catalog.New(src, c.pipelineOptions()...)

			query := strings.Join(args, " ")
			key, ord := catalog.SortKey(sortBy), catalog.SortOrder(order)
			view, err := p.Update(cmd.Context(), catalog.Change{
				SearchQuery: &query,
				SortBy:      &key,
				SortOrder:   &ord,
			})
			if err != nil {
				return err
			}
			return printView(cmd.OutOrStdout(), view)
		},
	}
	addSortFlags(cmd, &sortBy, &order)
	return cmd
}

func (c *cli) barcodeCmd() *cobra.Command {
	var noCache bool
	cmd := &cobra.Command{
		Use:   "barcode [code]",
		Short: "Show the details of one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := models.NormalizeBarcode(args[0])
			if code == "" {
				return fmt.Errorf("invalid barcode %q: must contain at least one digit", args[0])
			}

			var productCache *cache.Cache
			if !noCache {
				db, err := cache.Open(c.cfg.Cache.DBPath)
				if err != nil {
					return err
				}
				if productCache, err = cache.New(db, c.cfg.Cache.TTL); err != nil {
					db.Close()
					return err
				}
				defer productCache.Close()
			}

			src, err := c.newSource(productCache)
			if err != nil {
				return err
			}
			product, err := src.LookupBarcode(cmd.Context(), code)
			if err != nil {
				return err
			}
			return printProduct(cmd.OutOrStdout(), *product)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the local product cache")
	return cmd
}

func (c *cli) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := c.newSource(nil)
			if err != nil {
				return err
			}
			categories, err := catalog.New(src, c.pipelineOptions()...).LoadCategories(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRODUCTS")
			for _, cat := range categories {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", cat.ID, cat.Name, cat.Products)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) captureCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "capture [code]",
		Short: "Save a screenshot of a product's public page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			capturer := pagecapture.New(c.cfg.Source.BaseURL, c.log)
			capturer.Timeout = c.cfg.Capture.Timeout
			capturer.Width, capturer.Height = c.cfg.Capture.Width, c.cfg.Capture.Height
			capturer.Quality = c.cfg.Capture.Quality

			img, err := capturer.Capture(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = models.NormalizeBarcode(args[0]) + capturer.Ext()
			}
			if err := os.WriteFile(output, img, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Screenshot saved to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <code>.png)")
	return cmd
}

func addSortFlags(cmd *cobra.Command, sortBy, order *string) {
	cmd.Flags().StringVar(sortBy, "sort", string(catalog.SortByName), "Sort key: name, grade, category or created")
	cmd.Flags().StringVar(order, "order", string(catalog.Ascending), "Sort order: asc or desc")
}

func printView(w io.Writer, view catalog.View) error {
	if len(view.Products) == 0 {
		fmt.Fprintln(w, "No products found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tGRADE\tNAME\tBRANDS")
	for _, p := range view.Products {
		grade := p.Grade()
		if grade == "" {
			grade = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Code, grade, models.Truncate(p.DisplayName(), 0), models.Truncate(p.Brands, 30))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if view.CanLoadMore {
		fmt.Fprintf(w, "\n%d products shown, more available (--pages %d)\n", len(view.Products), view.Intent.CurrentPage+1)
	}
	return nil
}

func printProduct(w io.Writer, p models.Product) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", label, value)
		}
	}

	row("Name", p.DisplayName())
	row("Code", p.Code)
	row("Brands", p.Brands)
	row("Quantity", p.Quantity)
	if p.NutritionGrades != "" {
		row("Nutri-Score", fmt.Sprintf("%s (%s)", p.Grade(), models.GradeColor(p.NutritionGrades)))
	}
	if p.NutritionScoreFR != 0 {
		row("Nutrition score", fmt.Sprintf("%d/100 (%s)", p.NutritionScoreFR, models.BandFor(p.NutritionScoreFR)))
	}
	row("Added", models.FormatCreated(p.CreatedT))
	row("Categories", p.Categories)
	row("Labels", p.Labels)
	row("Stores", p.Stores)
	row("Countries", p.Countries)
	row("Allergens", p.Allergens)
	row("Ingredients", p.IngredientsText)
	if v, ok := p.Nutriments.Energy100g(); ok {
		row("Energy /100g", fmt.Sprintf("%g kcal", v))
	}
	if v, ok := p.Nutriments.Fat100g(); ok {
		row("Fat /100g", fmt.Sprintf("%gg", v))
	}
	if v, ok := p.Nutriments.Carbohydrates100g(); ok {
		row("Carbs /100g", fmt.Sprintf("%gg", v))
	}
	if v, ok := p.Nutriments.Proteins100g(); ok {
		row("Proteins /100g", fmt.Sprintf("%gg", v))
	}
	row("Image", p.ImageURLOrPlaceholder())
	return tw.Flush()
}
