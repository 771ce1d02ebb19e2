package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/v0xg/snapup/internal/document"
)

var importOutput string

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.side>",
		Short: "Convert a Selenium IDE recording into an action document",
		Args:  cobra.ExactArgs(1),
		RunE:  importSide,
	}
	cmd.Flags().StringVarP(&importOutput, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func importSide(_ *cobra.Command, args []string) error {
	doc, err := document.Load(args[0], document.Side)
	if err != nil {
		return err
	}
	return writeDocument(doc, importOutput)
}

// writeDocument prints doc to stdout, or to path when set.
func writeDocument(doc *document.Document, path string) error {
	data, err := document.Marshal(doc)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("%s Saved %d actions to %s\n", color.GreenString("✓"), len(doc.Actions), path)
	return nil
}
