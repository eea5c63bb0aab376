package cli

import (
	"fmt"
	"os"

	"github.com/soyeahso/crewbuilder/internal/store"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect the embedded SQLite database",
	}

	cmd.AddCommand(newDBVersionCmd())
	cmd.AddCommand(newDBSessionsCmd())
	return cmd
}

func newDBVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the SQLite engine version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := store.SQLiteVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SQLite version: %s\n", v)
			return nil
		},
	}
}

func newDBSessionsCmd() *cobra.Command {
	var (
		dbPath string
		remove []string
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List or delete builder sessions in the SQLite session store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dbPath
			if path == "" {
				path = cfg.Session.DBPath
			}
			if path == "" {
				path = paths.Sessions
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no session database at %s", path)
			}

			db, err := store.Open(path, log)
			if err != nil {
				return err
			}
			sessions := store.NewSQLiteSessionStore(db)
			defer sessions.Close()

			out := cmd.OutOrStdout()
			if len(remove) > 0 {
				for _, id := range remove {
					if err := sessions.Delete(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(out, "deleted %s\n", id)
				}
				return nil
			}

			snaps, err := sessions.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range snaps {
				fmt.Fprintf(out, "%s  steps=%d tasks=%d custom=%d model=%s updated=%s\n",
					s.ID, len(s.Steps), len(s.Tasks), len(s.Custom), s.Model.Model, s.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			if len(snaps) == 0 {
				fmt.Fprintln(out, "no sessions")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "session database path (default from config)")
	cmd.Flags().StringArrayVar(&remove, "delete", nil, "delete the session with this id (repeatable)")
	return cmd
}
