package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/nimburion/docquery/pkg/repository/document"
	"github.com/spf13/cobra"
)

func newInsertCommand(a *app) *cobra.Command {
	var collection, data string
	cmd := &cobra.Command{
		Use:     "insert",
		Short:   "Insert a record under a generated id",
		Example: `  docquery insert -C tasks --data '{"title":"write docs","status":"open"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readRecord(cmd, data)
			if err != nil {
				return err
			}
			return a.withRuntime(cmd, func(rt *runtime) error {
				inserted, err := rt.db.Collection(collection).Insert(cmd.Context(), rec)
				if err != nil {
					return err
				}
				rt.log.Info("record inserted", "collection", collection, "id", inserted[document.IDField])
				return writeOutput(cmd.OutOrStdout(), a.output, inserted)
			})
		},
	}
	addMutationFlags(cmd, &collection, &data)
	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var collection, data, id string
	cmd := &cobra.Command{
		Use:     "update",
		Short:   "Merge fields into an existing record",
		Example: `  docquery update -C tasks --id V1StGXR8 --data '{"status":"done"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readRecord(cmd, data)
			if err != nil {
				return err
			}
			if id = strings.TrimSpace(id); id != "" {
				rec[document.IDField] = id
			}
			return a.withRuntime(cmd, func(rt *runtime) error {
				updated, err := rt.db.Collection(collection).Update(cmd.Context(), rec)
				if err != nil {
					return err
				}
				rt.log.Info("record updated", "collection", collection, "id", updated[document.IDField])
				return writeOutput(cmd.OutOrStdout(), a.output, updated)
			})
		},
	}
	addMutationFlags(cmd, &collection, &data)
	cmd.Flags().StringVar(&id, "id", "", "record id (overrides any id in --data)")
	return cmd
}

type removeResult struct {
	ID      string `json:"id" yaml:"id"`
	Removed bool   `json:"removed" yaml:"removed"`
}

func newRemoveCommand(a *app) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a record; unknown ids succeed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return document.ErrMissingID
			}
			return a.withRuntime(cmd, func(rt *runtime) error {
				removed, err := rt.db.Collection(collection).Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				rt.log.Info("record removed", "collection", collection, "id", id)
				return writeOutput(cmd.OutOrStdout(), a.output, removeResult{ID: id, Removed: removed})
			})
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "C", "", "collection name")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func addMutationFlags(cmd *cobra.Command, collection, data *string) {
	cmd.Flags().StringVarP(collection, "collection", "C", "", "collection name")
	cmd.Flags().StringVarP(data, "data", "d", "", `record as a JSON object, or "-" to read stdin`)
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("data")
}

func readRecord(cmd *cobra.Command, data string) (document.Record, error) {
	raw := []byte(data)
	if strings.TrimSpace(data) == "-" {
		var err error
		if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	return parseRecord(raw)
}
