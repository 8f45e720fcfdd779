package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) modelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or delete models in a store",
		Long: `Models manages the model registry named by --store.

Example:
  tidysupervise models list --store sqlite://models.db
  tidysupervise models delete 01J... --store badger://./models`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored models, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.pipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()
			if p.Store() == nil {
				return errors.New("--store is required")
			}

			summaries, err := p.Store().ListModels(ctx)
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), []string{"id", "strategy", "created", "terms", "segment", "labels"})
			for _, s := range summaries {
				table.Append([]string{
					s.ID,
					s.Strategy,
					s.CreatedAt.Format(time.RFC3339),
					strconv.Itoa(s.Terms),
					strconv.Itoa(s.SegmentSize),
					strings.Join(s.Labels, ","),
				})
			}
			table.Render()
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete stored models",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.pipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()
			if p.Store() == nil {
				return errors.New("--store is required")
			}

			for _, id := range args {
				if err := p.Store().DeleteModel(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}
