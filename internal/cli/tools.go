package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"live-quiz-service/internal/importer"
)

// NewShuffleCmd rewrites a question file in a random order.
func NewShuffleCmd() *cobra.Command {
	var (
		out  string
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "shuffle FILE",
		Short: "Shuffle the rows of a question file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := importer.ReadFile(args[0])
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}
			return writeRows(cmd.OutOrStdout(), out, importer.Shuffle(rows, seed))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty (env: QUIZ_OUT)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "shuffle seed for a reproducible order (env: QUIZ_SEED)")
	return cmd
}

// NewTemplateCmd writes a starter question file.
func NewTemplateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a starter question file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeRows(cmd.OutOrStdout(), out, importer.Template())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty (env: QUIZ_OUT)")
	return cmd
}

// writeRows writes YAML to stdout or path, or a workbook when path ends in
// .xlsx.
func writeRows(stdout io.Writer, path string, rows []importer.Row) error {
	if path == "" {
		return importer.WriteRows(stdout, rows)
	}
	write := importer.WriteRows
	if importer.IsWorkbook(path) {
		write = importer.WriteWorkbook
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
