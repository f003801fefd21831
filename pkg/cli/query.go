package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/nimburion/docquery/pkg/query"
	"github.com/nimburion/docquery/pkg/repository/document"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

type queryFlags struct {
	collection string
	filters    []string
	sort       string
	mode       string
	page       int
	perPage    int
	omit       []string
}

func newQueryCommand(a *app) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query a collection",
		Example: `  docquery query -C tasks --filter status:=:open --sort createdAt:desc
  docquery query -C tasks --filter "title|body:like:invoice" --mode paginate --page 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := buildQuery(f)
			if err != nil {
				return err
			}
			return a.withRuntime(cmd, func(rt *runtime) error {
				var (
					out any
					err error
				)
				chain := rt.db.Collection(f.collection).Query()
				for _, filter := range b.filters {
					chain.FilterAny(filter.Fields, filter.Operator, filter.Value)
				}
				if b.sort != nil {
					chain.Sort(b.sort.Field, b.sort.Order)
				}
				if len(f.omit) > 0 {
					chain.Map(omitFields(f.omit))
				}

				switch query.Mode(f.mode) {
				case query.ModeAll:
					out, err = chain.All(cmd.Context())
				case query.ModeFirst:
					out, err = chain.First(cmd.Context())
				case query.ModePaginate:
					out, err = chain.Paginate(cmd.Context(), f.page, f.perPage)
				}
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), a.output, out)
			})
		},
	}
	cmd.Flags().StringVarP(&f.collection, "collection", "C", "", "collection name")
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "filter as field:operator:value, fields joined by | (repeatable)")
	cmd.Flags().StringVarP(&f.sort, "sort", "s", "", "sort as field[:asc|desc]")
	cmd.Flags().StringVar(&f.mode, "mode", string(query.ModeAll), "execution mode: all, first or paginate")
	cmd.Flags().IntVar(&f.page, "page", query.DefaultPage, "page number (paginate mode)")
	cmd.Flags().IntVar(&f.perPage, "per-page", query.DefaultPerPage, "page size (paginate mode)")
	cmd.Flags().StringSliceVar(&f.omit, "omit", nil, "fields to drop from each result")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

// omitFields drops fields from each result. An absent result stays absent.
func omitFields(fields []string) query.Mapper[document.Record] {
	return func(rec document.Record) (document.Record, error) {
		if rec == nil {
			return nil, nil
		}
		out := maps.Clone(rec)
		for _, field := range fields {
			delete(out, strings.TrimSpace(field))
		}
		return out, nil
	}
}

type builtQuery struct {
	filters []query.Filter
	sort    *query.Sort
}

func buildQuery(f queryFlags) (builtQuery, error) {
	var b builtQuery
	switch query.Mode(f.mode) {
	case query.ModeAll, query.ModeFirst, query.ModePaginate:
	default:
		return b, fmt.Errorf("unknown mode %q (supported: all, first, paginate)", f.mode)
	}
	for _, raw := range f.filters {
		filter, err := parseFilter(raw)
		if err != nil {
			return b, err
		}
		b.filters = append(b.filters, filter)
	}
	if strings.TrimSpace(f.sort) != "" {
		s, err := parseSort(f.sort)
		if err != nil {
			return b, err
		}
		b.sort = &s
	}
	return b, nil
}

// parseFilter reads field:operator:value. The value is decoded as JSON when it
// parses, otherwise taken as a plain string.
func parseFilter(raw string) (query.Filter, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return query.Filter{}, fmt.Errorf("filter %q: expected field:operator:value", raw)
	}

	var fields []string
	for _, field := range strings.Split(parts[0], "|") {
		if field = strings.TrimSpace(field); field != "" {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return query.Filter{}, fmt.Errorf("filter %q: field is required", raw)
	}

	op, err := query.ParseOperator(strings.TrimSpace(parts[1]))
	if err != nil {
		return query.Filter{}, fmt.Errorf("filter %q: %w", raw, err)
	}
	return query.NewFilter(op, parseValue(parts[2]), fields...), nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func parseSort(raw string) (query.Sort, error) {
	field, order, _ := strings.Cut(raw, ":")
	field = strings.TrimSpace(field)
	if field == "" {
		return query.Sort{}, fmt.Errorf("sort %q: field is required", raw)
	}
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "asc":
		return query.Sort{Field: field, Order: query.Asc}, nil
	case "desc":
		return query.Sort{Field: field, Order: query.Desc}, nil
	default:
		return query.Sort{}, fmt.Errorf("sort %q: order must be asc or desc", raw)
	}
}

// parseRecord decodes a JSON object payload.
func parseRecord(raw []byte) (document.Record, error) {
	var rec document.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("decode record: expected a JSON object")
	}
	return rec, nil
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
