package main

import (
	"fmt"
	"io"

	"superparty/config"
	"superparty/database"
	"superparty/logging"
	"superparty/services"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	cfg  *config.Config
	db   *gorm.DB
	ctrl *services.DatabaseController
}

// run executes one partyctl invocation and always releases the database.
func run(args []string, stdout, stderr io.Writer) error {
	a := &app{}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	defer a.close()
	return cmd.Execute()
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "partyctl",
		Short:         "Manage heroes, teams and parties",
		Long:          "partyctl edits the hero and team store directly. It reads the same environment and .env file as the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}

	cmd.PersistentFlags().String("db-driver", "", "database driver: sqlite or postgres (or DB_DRIVER env)")
	cmd.PersistentFlags().String("db-path", "", "sqlite database file (or DB_PATH env)")
	cmd.PersistentFlags().String("database-url", "", "postgres DSN (or DATABASE_URL env)")
	cmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")
	cmd.PersistentFlags().Bool("verbose", false, "log store activity to stderr")

	cmd.AddCommand(
		newHeroesCmd(a),
		newTeamsCmd(a),
		newSeedCmd(a),
		newCleanupCmd(a),
	)
	return cmd
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("db-path"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := cmd.Flags().GetString("database-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.Discard()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log = logging.New(cmd.ErrOrStderr(), "text", cfg.LogLevel)
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	store := services.NewEntityStore(db, services.StoreOptions{
		MaxPartySize:    cfg.MaxPartySize,
		MaxTeams:        cfg.MaxTeams,
		DefaultTeamName: cfg.DefaultTeamName,
	}, log)

	a.cfg = cfg
	a.db = db
	a.ctrl = services.NewDatabaseController(store, nil, log)
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := database.Close(a.db)
	a.db = nil
	return err
}

// printerFor writes to the command's output in the --output format.
func printerFor(cmd *cobra.Command) *printer {
	format, _ := cmd.Flags().GetString("output")
	return newPrinter(format, cmd.OutOrStdout())
}
