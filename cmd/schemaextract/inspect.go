package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"schemaextract/internal/safeio"
	"schemaextract/internal/schema"
)

func newInspectCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <schema.pb>",
		Short: "Print a schema written by extract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInspect(cmd, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON instead of schema text")
	return cmd
}

func (a *app) runInspect(cmd *cobra.Command, path string, asJSON bool) error {
	fsys, err := safeio.NewSafeFS(filepath.Dir(path))
	if err != nil {
		return err
	}
	b, err := fsys.SafeReadFile(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	m, err := schema.Decode(b)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	a.log.Debug().Str("path", path).Str("module", m.Name).Int("decls", len(m.Decls)).Msg("decoded schema")

	w := cmd.OutOrStdout()
	if !asJSON {
		fmt.Fprint(w, m.String())
		return nil
	}
	st, err := schema.ToStruct(m)
	if err != nil {
		return err
	}
	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
