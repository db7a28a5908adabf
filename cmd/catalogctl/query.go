package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/service"
	"github.com/spf13/cobra"
)

var (
	queryFilters []string
	querySort    string
	queryPage    int
	queryOptions []string
	queryTimeout time.Duration
)

// queryResult is what catalogctl query prints
type queryResult struct {
	Filters map[model.Dimension]string                `json:"filters"`
	Sort    model.SortSpec                            `json:"sort"`
	Status  model.Status                              `json:"status"`
	Page    model.ResultPage                          `json:"page"`
	Options map[model.Dimension]model.RenderedOptions `json:"options"`
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Apply filters and print the visible page and option lists",
	Long: `Query applies each --filter in dependency order, so a model can be given
together with its manufacturer, then prints the settled session as JSON.

Ranges are written min..max with either side optional.

Example:
  catalogctl query --seed catalog.yaml --filter manufacturer=BMW --filter model="3 Series"
  catalogctl query --filter year_range=2018.. --sort price:asc --page 2
  catalogctl query --filter manufacturer=Audi --options model`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
		defer cancel()

		session, err := rt.Sessions.Create(ctx)
		if err != nil {
			return err
		}
		return runQuery(ctx, session, queryArgs{
			filters: queryFilters,
			sort:    querySort,
			page:    queryPage,
			options: queryOptions,
		}, cmd.OutOrStdout())
	},
}

func init() {
	queryCmd.Flags().StringArrayVar(&queryFilters, "filter", nil, "dimension=value, repeatable")
	queryCmd.Flags().StringVar(&querySort, "sort", "", "sort key[:asc|desc], e.g. price:asc")
	queryCmd.Flags().IntVar(&queryPage, "page", 0, "zero-based page index")
	queryCmd.Flags().StringSliceVar(&queryOptions, "options", nil, "dimensions whose option lists to print (default: all)")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 30*time.Second, "maximum time to wait for results")
}

type queryArgs struct {
	filters []string
	sort    string
	page    int
	options []string
}

// runQuery drives one session through the requested filters, sort and page
func runQuery(ctx context.Context, session *service.Session, args queryArgs, out io.Writer) error {
	values, err := parseFilters(args.filters)
	if err != nil {
		return err
	}

	session.Prime(ctx)
	for _, d := range model.AllDimensions {
		v, ok := values[d]
		if !ok {
			continue
		}
		if err := session.SetFilter(d, v); err != nil {
			return err
		}
	}

	if args.sort != "" {
		spec, err := model.ParseSortSpec(args.sort)
		if err != nil {
			return err
		}
		if err := session.SetSort(spec); err != nil {
			return err
		}
	}
	// a new dataset returns to the first page, so select it once settled
	if err := session.Settle(ctx); err != nil {
		return fmt.Errorf("results did not settle: %w", err)
	}
	if err := session.SetPage(args.page); err != nil {
		return err
	}

	dims, err := optionDimensions(args.options)
	if err != nil {
		return err
	}

	snap := session.Snapshot()
	result := queryResult{
		Filters: snap.Filters,
		Sort:    snap.Sort,
		Status:  snap.Status,
		Page:    snap.Page,
		Options: make(map[model.Dimension]model.RenderedOptions, len(dims)),
	}
	for _, d := range dims {
		result.Options[d] = snap.Options[d]
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// parseFilters turns dimension=value pairs into typed values
func parseFilters(raw []string) (map[model.Dimension]model.Value, error) {
	values := make(map[model.Dimension]model.Value, len(raw))
	for _, f := range raw {
		name, value, found := strings.Cut(f, "=")
		if !found {
			return nil, fmt.Errorf("filter %q must be dimension=value", f)
		}
		d, ok := model.ParseDimension(name)
		if !ok {
			return nil, fmt.Errorf("unknown dimension %q", name)
		}
		v, err := model.ParseValue(d, value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", d, err)
		}
		values[d] = v
	}
	return values, nil
}

func optionDimensions(names []string) ([]model.Dimension, error) {
	if len(names) == 0 {
		var dims []model.Dimension
		for _, d := range model.AllDimensions {
			if d.HasOptions() {
				dims = append(dims, d)
			}
		}
		return dims, nil
	}

	dims := make([]model.Dimension, 0, len(names))
	for _, name := range names {
		d, ok := model.ParseDimension(name)
		if !ok || !d.HasOptions() {
			return nil, fmt.Errorf("dimension %q has no option list", name)
		}
		dims = append(dims, d)
	}
	return dims, nil
}
