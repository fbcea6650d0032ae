// Command hooka is a terminal client for the hooka backend. It keeps a
// local copy of the user, history and profiles and syncs them with the
// server whenever it is reachable.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hooka/internal/background"
	"hooka/internal/client"
	"hooka/internal/localstore"
	"hooka/internal/persistence"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cli holds flag values and the session built before each command.
type cli struct {
	configPath string
	endpoint   string
	token      string
	localDB    string
	userID     string
	password   string
	verbose    bool

	cfg    *cliConfig
	logger zerolog.Logger
	local  localstore.Store
	runner *background.Runner
	store  *persistence.Store
	ai     *client.AI
	close  func() error
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}
	root := &cobra.Command{
		Use:           "hooka",
		Short:         "Generate marketing hooks from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", defaultConfigPath(), "Config file")
	root.PersistentFlags().StringVar(&c.endpoint, "endpoint", "", "RPC endpoint (overrides config)")
	root.PersistentFlags().StringVar(&c.token, "token", "", "Identity token sent as bearer")
	root.PersistentFlags().StringVar(&c.localDB, "local-db", "", "Local cache file (\":memory:\" keeps it in memory)")
	root.PersistentFlags().StringVar(&c.userID, "user", "", "User id (overrides config)")
	root.PersistentFlags().StringVar(&c.password, "password", "", "Admin password (or HOOKA_ADMIN_PASSWORD)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		c.initCmd(),
		c.userCmd(),
		c.historyCmd(),
		c.profilesCmd(),
		c.generateCmd(),
		c.researchCmd(),
		c.promoCmd(),
		c.checkoutCmd(),
		c.adminCmd(),
	)
	return root, c
}

// execute runs root and releases the session afterwards, whether or not the
// command succeeded.
func (c *cli) execute(root *cobra.Command) (err error) {
	defer func() {
		if serr := c.shutdown(); err == nil {
			err = serr
		}
	}()
	return root.Execute()
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.endpoint != "" {
		cfg.Endpoint = c.endpoint
	}
	if c.token != "" {
		cfg.Token = c.token
	}
	if c.localDB != "" {
		cfg.LocalDB = c.localDB
	}
	if c.userID != "" {
		cfg.UserID = c.userID
	}
	if c.password == "" {
		c.password = os.Getenv("HOOKA_ADMIN_PASSWORD")
	}
	if c.password == "" {
		c.password = cfg.AdminPassword
	}
	c.cfg = cfg

	level := zerolog.WarnLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}
	c.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level).With().Timestamp().Logger()

	if cfg.LocalDB == ":memory:" {
		c.local = localstore.NewMemory()
		c.close = func() error { return nil }
	} else {
		path := cfg.LocalDB
		if path == "" {
			path = defaultLocalDBPath()
		}
		db, err := localstore.OpenSQLite(cmd.Context(), path, c.logger)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Local cache unavailable, using memory")
			c.local = localstore.NewMemory()
			c.close = func() error { return nil }
		} else {
			c.local = db
			c.close = db.Close
		}
	}

	var opts []client.Option
	if cfg.Token != "" {
		opts = append(opts, client.WithTokenSource(client.StaticToken(cfg.Token)))
	}
	rpc := client.New(cfg.Endpoint, c.logger, opts...)
	c.runner = background.New(c.logger, client.SyncTimeout)
	c.store = persistence.New(c.local, rpc, c.runner, c.logger)
	c.ai = client.NewAI(rpc)
	return nil
}

// shutdown waits briefly for detached syncs so a short-lived process does
// not drop them.
func (c *cli) shutdown() error {
	if c.runner == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), client.SyncTimeout+time.Second)
	defer cancel()
	if err := c.runner.Shutdown(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Pending syncs dropped")
	}
	c.runner = nil
	return c.close()
}

func defaultLocalDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return localDBFileName
	}
	return filepath.Join(home, localDBFileName)
}

var errNoUser = errors.New("no user selected: pass --user or run 'hooka user save'")

func (c *cli) requireUser() (string, error) {
	if c.cfg.UserID == "" {
		return "", errNoUser
	}
	return c.cfg.UserID, nil
}

func (c *cli) print(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func main() {
	root, c := newRootCmd()
	if err := c.execute(root); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
