package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newReduceCmd(e *env) *cobra.Command {
	var (
		maxTokens    int
		commentsFile string
		countOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "reduce [file]",
		Short: "Shrink text to the embedding token limit by removing its middle",
		Long: `Read text from file (or stdin) and print it reduced to --max-tokens tokens
under the embedding model's tokenizer. Text that already fits is printed
unchanged.

With --comments, the input is kept whole and only the comments file is
shortened so that both fit together.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := e.cfg.Embedding.MaxTokens
			if cmd.Flags().Changed("max-tokens") {
				limit = maxTokens
			}
			tok, reducer, err := e.newReducer(limit)
			if err != nil {
				return err
			}

			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if countOnly {
				_, err := fmt.Fprintln(out, tok.Count(text))
				return err
			}

			if commentsFile == "" {
				_, err = io.WriteString(out, reducer.Reduce(text))
				return err
			}

			discussion, err := os.ReadFile(commentsFile)
			if err != nil {
				return fmt.Errorf("read comments: %w", err)
			}
			primary, secondary := reducer.ReduceWithComments(text, string(discussion))
			_, err = fmt.Fprintf(out, "%s\n%s", primary, secondary)
			return err
		},
	}

	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "token ceiling (default embedding.max_tokens)")
	cmd.Flags().StringVar(&commentsFile, "comments", "", "file with the secondary text that may be shortened")
	cmd.Flags().BoolVar(&countOnly, "count", false, "print the token count instead of reducing")
	return cmd
}

// readInput returns the contents of args[0], or of stdin when no file or
// "-" is given.
func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(b), nil
}
