package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	store "github.com/likearthian/tablestore"
	"github.com/likearthian/tablestore/internal/logger"
)

const (
	demoName    = "Ana García"
	demoEmail   = "ana@example.com"
	demoNewName = "Ana Actualizada"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the reference flow against a users table",
	Long:  `demo creates the users table, inserts a user, selects, updates, checks existence, counts and finally deletes it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pterm.Info.Println("Initializing client...")
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				logger.FromContext(ctx).Warn("failed to close connection", "error", err)
			}
		}()

		if _, err := runDemo(ctx, s); err != nil {
			return err
		}

		pterm.Success.Println("Finished.")
		return nil
	},
}

type demoReport struct {
	Tables            store.CreateTablesResult
	Inserted          store.InsertResult
	Selected          []store.Row
	Updated           store.WriteResult
	Reselected        []store.Row
	Exists            bool
	Total             int64
	Deleted           store.WriteResult
	ExistsAfterDelete bool
}

func runDemo(ctx context.Context, s store.Store) (demoReport, error) {
	var (
		rep    demoReport
		err    error
		byMail = store.Eq("email", demoEmail)
		cols   = []string{"id", "name", "email"}
	)

	pterm.Info.Println("Creating tables...")
	if rep.Tables, err = store.CreateTables(ctx, usersSchema(), s); err != nil {
		return rep, err
	}
	printTables(rep.Tables)

	pterm.Info.Println("Inserting user...")
	if rep.Inserted, err = s.Insert(ctx, store.InsertRequest{
		Table:  "users",
		Values: map[string]any{"name": demoName, "email": demoEmail},
	}); err != nil {
		return rep, err
	}
	pterm.Printfln("inserted %d row, key %v", rep.Inserted.RowsAffected, rep.Inserted.Key)

	pterm.Info.Println("Selecting user...")
	if rep.Selected, err = s.Select(ctx, store.SelectRequest{Table: "users", Where: byMail, Columns: cols}); err != nil {
		return rep, err
	}
	if err := printRows(cols, rep.Selected); err != nil {
		return rep, err
	}

	pterm.Info.Println("Updating name...")
	if rep.Updated, err = s.Update(ctx, store.UpdateRequest{
		Table: "users",
		Set:   map[string]any{"name": demoNewName},
		Where: byMail,
	}); err != nil {
		return rep, err
	}
	pterm.Printfln("updated %d row(s)", rep.Updated.RowsAffected)

	if rep.Reselected, err = s.Select(ctx, store.SelectRequest{Table: "users", Where: byMail, Columns: cols}); err != nil {
		return rep, err
	}
	if err := printRows(cols, rep.Reselected); err != nil {
		return rep, err
	}

	pterm.Info.Println("Checking existence...")
	if rep.Exists, err = s.Exists(ctx, store.TableFilter{Table: "users", Where: byMail}); err != nil {
		return rep, err
	}
	pterm.Printfln("exists: %t", rep.Exists)

	pterm.Info.Println("Counting users...")
	if rep.Total, err = s.Count(ctx, store.TableFilter{Table: "users", Where: store.MatchAll()}); err != nil {
		return rep, err
	}
	pterm.Printfln("total: %d", rep.Total)

	pterm.Info.Println("Deleting user...")
	if rep.Deleted, err = s.Delete(ctx, store.TableFilter{Table: "users", Where: byMail}); err != nil {
		return rep, err
	}
	pterm.Printfln("deleted %d row(s)", rep.Deleted.RowsAffected)

	if rep.ExistsAfterDelete, err = s.Exists(ctx, store.TableFilter{Table: "users", Where: byMail}); err != nil {
		return rep, err
	}

	return rep, nil
}

func printTables(res store.CreateTablesResult) {
	for _, t := range res.Tables {
		switch {
		case t.Err != nil:
			pterm.Error.Printfln("%s: %v", t.Table, t.Err)
		case t.Created:
			pterm.Success.Printfln("%s: created", t.Table)
		default:
			pterm.Info.Printfln("%s: already present", t.Table)
		}
	}
}

func printRows(cols []string, rows []store.Row) error {
	data := pterm.TableData{cols}
	for _, r := range rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			line[i] = fmt.Sprint(r[c])
		}
		data = append(data, line)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
