package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"repair-dashboard/internal/models"
	"repair-dashboard/internal/store"
)

const timeLayout = "02/01/2006 15:04"

func newImportCmd(opts *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <url>",
		Short: "Import a public Google Sheet and make it active",
		Long: `Download a Google Sheet as CSV, save it in the import history and make it the
active dataset. Importing a sheet that is already in the history refreshes it
in place.

Examples:
  repairctl import "https://docs.google.com/spreadsheets/d/<id>/edit#gid=0"
  repairctl import <url> --name "March repairs"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer app.Close()

			rec, err := app.Importer.Import(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%d rows, %d columns)\n",
				successStyle.Render("Imported"), rec.SheetName, rec.RowCount, rec.ColumnCount)
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("ID:"), rec.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name for the import")
	return cmd
}

func newImportsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "imports",
		Short: "List the import history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			imports, err := app.Store.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(imports) == 0 {
				fmt.Fprintln(out, labelStyle.Render("No imports yet. Run `repairctl import <url>` to add one."))
				return nil
			}

			activeID := ""
			if active, err := app.Store.Active(ctx); err == nil {
				activeID = active.ID
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			t := newTable("", "ID", "Name", "Rows", "Status", "Updated")
			for _, imp := range imports {
				t.Row(activeMarker(imp, activeID), imp.ID, imp.SheetName,
					fmt.Sprint(imp.RowCount), string(imp.Status), imp.UpdatedAt.Local().Format(timeLayout))
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}
}

func activeMarker(imp models.ImportRecord, activeID string) string {
	if imp.ID == activeID {
		return "*"
	}
	return ""
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an import from the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Store.Delete(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("import %q not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Deleted"), args[0])
			return nil
		},
	}
}

func newActivateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Make a saved import the dataset the dashboard shows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Store.SetActive(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("import %q not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Active:"), args[0])
			return nil
		},
	}
}
