// Command migrationc compiles a migrations source tree into the pipe-delimited
// table embedded by package migrate. It is run through go generate.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/tapline/internal/migrate"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var src, out string

	cmd := &cobra.Command{
		Use:          "migrationc",
		Short:        "Compile SQL migrations into an embeddable table",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrations, err := migrate.Load(os.DirFS(src))
			if err != nil {
				return fmt.Errorf("load %s: %w", src, err)
			}

			var buf bytes.Buffer
			if err := migrate.Encode(&buf, migrations); err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			if err := writeFileAtomic(out, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compiled %d migrations into %s\n", len(migrations), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&src, "src", "migrations", "migrations source directory")
	cmd.Flags().StringVar(&out, "out", "compiled.psv", "compiled table path")
	return cmd
}

// writeFileAtomic replaces path so a failed run never leaves a truncated table.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".migrationc-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	return os.Rename(tmp.Name(), path)
}
