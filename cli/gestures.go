package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newGesturesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "gestures",
		Short: "列出词典中的手势",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure(cmd)
			if err != nil {
				return err
			}
			lex, err := loadLexicon(cfg, logger)
			if err != nil {
				return err
			}

			gestures := lex.Gestures()
			rows := make([][]string, 0, len(gestures))
			for _, g := range gestures {
				rows = append(rows, []string{g.Name, g.Arms, g.Face, strconv.FormatInt(g.Duration().Milliseconds(), 10)})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Arms", "Face", "Duration (ms)"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(out, "共 %d 个手势，默认表情 %s\n", len(gestures), lex.DefaultFace())
			return nil
		},
	}
}
