package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource"
)

func newEnginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "engines",
		Short:             "List supported database engines",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			engines := datasource.RegisteredEngines()
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), engines)
			}
			rows := make([][]string, len(engines))
			for i, e := range engines {
				rows[i] = []string{string(e.Type), e.DisplayName, e.DefaultPort, e.Description}
			}
			return printTable(cmd.OutOrStdout(), []string{"type", "name", "default port", "description"}, rows)
		},
	}
}

func newTestCmd(a *app) *cobra.Command {
	var descriptorPath string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test connectivity to a database source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desc, err := loadDescriptor(descriptorPath, terminalPassword(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if err := a.session.Connections.TestConnection(cmd.Context(), desc); err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), a.session.Connections.Status())
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptorPath, "descriptor", "d", "", "Path to source descriptor YAML")
	_ = cmd.MarkFlagRequired("descriptor")
	return cmd
}

func newSchemaCmd(a *app) *cobra.Command {
	var (
		descriptorPath string
		chunkSize      int
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Discover the schema of a database source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desc, err := loadDescriptor(descriptorPath, terminalPassword(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("chunk-size") {
				chunkSize = a.cfg.Ingestion.ChunkSize
			}
			schema, err := a.session.IngestDatabase(cmd.Context(), desc, chunkSize)
			if err != nil {
				return err
			}
			return printSchema(cmd.OutOrStdout(), getOutputFormat(cmd), schema)
		},
	}

	cmd.Flags().StringVarP(&descriptorPath, "descriptor", "d", "", "Path to source descriptor YAML")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Processing chunk size forwarded to the backend (default from config)")
	_ = cmd.MarkFlagRequired("descriptor")
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	var (
		schemaPath string
		page       int
	)

	cmd := &cobra.Command{
		Use:   "preview <source-id>",
		Short: "Show one page of records for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}
			result, err := a.session.Preview.LoadPage(cmd.Context(), args[0], schema, page)
			if err != nil {
				return err
			}
			return printPage(cmd.OutOrStdout(), getOutputFormat(cmd), schema, result)
		},
	}

	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "Path to schema YAML or JSON")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number (1-based)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		schemaPath string
		page       int
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "export <source-id>",
		Short: "Export one preview page as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}
			if _, err := a.session.Preview.LoadPage(cmd.Context(), args[0], schema, page); err != nil {
				return err
			}
			table, err := a.session.Preview.Export(args[0], schema)
			if err != nil {
				return err
			}

			if outDir == "-" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), table.Content)
				return err
			}
			path := filepath.Join(outDir, table.Filename(time.Now()))
			if err := os.WriteFile(path, []byte(table.Content), 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported page %d to %s\n", a.session.Preview.View(args[0]).CurrentPage, path)
			return err
		},
	}

	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "Path to schema YAML or JSON")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number (1-based)")
	cmd.Flags().StringVar(&outDir, "out", ".", "Directory for the export file, or - for stdout")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List ingestion history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.History.Refresh(cmd.Context()); err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), getOutputFormat(cmd), a.session.History.Entries())
		},
	}
}
