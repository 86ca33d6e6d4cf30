package main

import (
	"fmt"

	"github.com/spf13/cobra"

	store "github.com/likearthian/tablestore"
	"github.com/likearthian/tablestore/internal/logger"
)

var schemaFile string

var createTablesCmd = &cobra.Command{
	Use:   "create-tables",
	Short: "Create the tables of a schema file",
	Long:  `create-tables applies a YAML or JSON schema descriptor. Existing tables with the same definition are left alone; a conflicting definition is reported per table.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := loadSchema(schemaFile)
		if err != nil {
			return err
		}

		client, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.FromContext(ctx).Warn("failed to close connection", "error", err)
			}
		}()

		res, err := store.CreateTables(ctx, s, client)
		printTables(res)
		if failed := res.Failed(); len(failed) > 0 {
			return fmt.Errorf("%d of %d tables failed", len(failed), len(res.Tables))
		}
		return err
	},
}

func init() {
	createTablesCmd.Flags().StringVar(&schemaFile, "schema", "", "Schema descriptor file (YAML or JSON)")
	_ = createTablesCmd.MarkFlagRequired("schema")
}
