package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"schemaextract/internal/config"
	"schemaextract/internal/extract"
	"schemaextract/internal/safeio"
	"schemaextract/internal/scan"
	"schemaextract/internal/schema"
)

func newExtractCmd(a *app) *cobra.Command {
	var printSchema bool
	cmd := &cobra.Command{
		Use:   "extract [dir]",
		Short: "Extract the schema of the module rooted at dir",
		Long: `Extract reads ftl.toml in dir (default ".") for the module name, analyses
every Python file below it and writes the schema to <deploy-dir>/<schema>
(".ftl/schema.pb" by default).

Files that fail to parse and malformed declarations are reported and
skipped; only a missing or invalid ftl.toml aborts the run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return a.runExtract(cmd, dir, printSchema)
		},
	}
	cmd.Flags().BoolVar(&printSchema, "print", false, "also print the schema as text")
	return cmd
}

func (a *app) runExtract(cmd *cobra.Command, dir string, printSchema bool) error {
	fsys, err := safeio.NewSafeFS(dir)
	if err != nil {
		return fmt.Errorf("module root: %w", err)
	}
	desc, err := config.LoadDescriptor(fsys)
	if err != nil {
		return err
	}

	opts := scan.Options{IgnoreDirs: append(append([]string(nil), scan.DefaultIgnoreDirs...), filepath.Base(desc.DeployDir))}
	files, err := scan.SourceFiles(fsys.Root(), opts)
	if err != nil {
		return fmt.Errorf("scan %s: %w", fsys.Root(), err)
	}
	a.log.Info().Str("module", desc.Module).Int("files", len(files)).Msg("extracting")

	analyzer := extract.New(desc.Module, fsys,
		extract.WithWorkers(a.cfg.Workers),
		extract.WithCacheSize(a.cfg.CacheSize),
		extract.WithLogger(a.log),
	)
	res, err := analyzer.Run(cmd.Context(), files)
	if err != nil {
		return err
	}

	out, err := schema.Encode(res.Module)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	if err := fsys.WriteFileAtomic(desc.SchemaPath(), out, 0o644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}

	w := cmd.OutOrStdout()
	if printSchema {
		fmt.Fprint(w, res.Module.String())
	}
	fmt.Fprintf(w, "wrote %s: %d verbs, %d data, %d unresolved, %d diagnostics\n",
		filepath.Join(fsys.Root(), desc.SchemaPath()),
		len(res.Module.Verbs()), len(res.Module.Data()), len(res.Pending), len(res.Diagnostics))
	for _, ref := range res.Pending {
		fmt.Fprintf(w, "  unresolved: %s\n", ref)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "  %s\n", d)
	}
	return nil
}
