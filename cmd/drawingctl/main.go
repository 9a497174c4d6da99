package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"drawing-core/internal/drawing/codec"
	"drawing-core/internal/drawing/patch"
	"drawing-core/internal/drawing/validation"

	"github.com/spf13/cobra"
)

// ============================================================
// drawingctl
// ============================================================

var errInvalid = errors.New("document is invalid")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "drawingctl",
		Short:         "Offline tools for drawing documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newValidateCmd(),
		newCanonicalizeCmd(),
		newHashCmd(),
		newCBORCmd(),
		newPatchCmd(),
	)
	return root
}

// ============================================================
// validate
// ============================================================

func newValidateCmd() *cobra.Command {
	var rejectWarnings bool
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Parse a document and print its violations as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			res, err := validation.ValidateSafe(data, validation.RejectWarnings(rejectWarnings))
			var failure *validation.Failure
			switch {
			case errors.As(err, &failure):
				if err := printJSON(cmd.OutOrStdout(), validateReport{Valid: false, Error: failure.Message, Violations: failure.Violations}); err != nil {
					return err
				}
				return errInvalid
			case err != nil:
				return err
			}
			return printJSON(cmd.OutOrStdout(), validateReport{Valid: true, ID: res.Drawing.ID, Violations: res.Violations})
		},
	}
	cmd.Flags().BoolVar(&rejectWarnings, "reject-warnings", false, "treat warnings as errors")
	return cmd
}

func (r validateReport) MarshalJSON() ([]byte, error) {
	type plain validateReport
	if r.Violations == nil {
		r.Violations = []validation.Violation{}
	}
	return json.Marshal(plain(r))
}

type validateReport struct {
	Valid      bool                   `json:"valid"`
	ID         string                 `json:"id,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Violations []validation.Violation `json:"violations"`
}

// ============================================================
// canonicalize / hash / cbor
// ============================================================

func newCanonicalizeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "canonicalize FILE",
		Short: "Rewrite a document in its stable form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			out, err := codec.Canonicalize(data)
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash FILE",
		Short: "Print the content hash of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			d, err := codec.Decode(data)
			if err != nil {
				return err
			}
			hash, err := codec.ContentHash(d)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash.String())
			return err
		},
	}
}

func newCBORCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "cbor FILE",
		Short: "Encode a document as deterministic CBOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			d, err := codec.Decode(data)
			if err != nil {
				return err
			}
			out, err := codec.MarshalCBOR(d)
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file (required)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// ============================================================
// patch
// ============================================================

func newPatchCmd() *cobra.Command {
	var (
		output  string
		inverse bool
	)
	cmd := &cobra.Command{
		Use:   "patch FILE OPS",
		Short: "Apply operations to a document and print the stable result",
		Long: "Apply a JSON operation (or an array of them) to a document.\n" +
			"With --inverse the operations are undone in reverse order instead.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			rawOps, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}

			res, err := validation.ValidateSafe(data)
			if err != nil {
				return err
			}
			ops, err := patch.UnmarshalOperations(rawOps)
			if err != nil {
				return err
			}
			if inverse {
				ops = inverted(ops)
			}

			next, err := patch.ApplyAll(res.Drawing, ops...)
			if err != nil {
				return err
			}
			if _, err := validation.Check(next); err != nil {
				return err
			}
			out, err := codec.MarshalStable(next)
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&inverse, "inverse", false, "apply the inverse operations in reverse order")
	return cmd
}

func inverted(ops []patch.Operation) []patch.Operation {
	out := make([]patch.Operation, len(ops))
	for i, op := range ops {
		out[len(ops)-1-i] = op.Inverse()
	}
	return out
}

// ============================================================
// IO helpers
// ============================================================

// readInput читает файл; "-" означает stdin.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
