package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/labstack/gommon/log"
	"github.com/modelyard/modelyard/pkg/configs/backend"
	"github.com/modelyard/modelyard/pkg/db/postgres"
	kio "github.com/modelyard/modelyard/pkg/io"
	"github.com/modelyard/modelyard/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Host     string `flag:"host" help:"The host of the database."`
	Port     int    `flag:"port" help:"The port of the database."`
	User     string `flag:"user" help:"The user of the database."`
	Password string `flag:"pass" help:"The password of the database."`
	Database string `flag:"database" help:"The name of the database."`

	Schema string `flag:"schema" help:"The path to the schema repository directory."`
	Config string `flag:"config" help:"The path to the backend config file. Overrides connection flags."`
}

const ARG_SCHEMA_DEST = "ARG_SCHEMA_DEST"

func main() {
	logger := log.New("schema_upgrader")
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt, os.Kill,
	)
	defer cancel()

	port := 5432
	if sp := os.Getenv("DB_PORT"); sp != "" {
		p, err := strconv.Atoi(sp)
		if err == nil {
			port = p
		}
	}

	cmd := try.To(flarc.NewCommand(
		"database schema upgrader",
		Flag{
			Host:     os.Getenv("DB_HOST"),
			Port:     port,
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: os.Getenv("DB_NAME"),

			Schema: os.Getenv("MODELYARD_SCHEMA"),
			Config: os.Getenv("MODELYARD_CONFIG"),
		},
		flarc.Args{
			{
				Name: ARG_SCHEMA_DEST, Help: "The schema files are copied to these directories.",
				Required: false, Repeatable: false,
			},
		},
		func(ctx context.Context, c flarc.Commandline[Flag], a []any) error {
			flags := c.Flags()

			dsn := fmt.Sprintf(
				"postgres://%s:%s@%s:%d/%s",
				flags.User, flags.Password, flags.Host, flags.Port, flags.Database,
			)
			schema := flags.Schema
			options := []postgres.Option{}

			if flags.Config != "" {
				conf, err := backend.LoadBackendConfig(flags.Config)
				if err != nil {
					return err
				}
				dsn = conf.Database()
				if s := conf.SchemaRepository(); s != "" {
					schema = s
				}
				rules, err := conf.LoadDependencyRules()
				if err != nil {
					return err
				}
				options = append(options, postgres.WithDependencyRules(rules))
			}

			dest := c.Args()[ARG_SCHEMA_DEST]
			if len(dest) != 0 {
				logger.Info("copying schema files...")
				if err := kio.DirCopy(schema, dest[0]); err != nil {
					return err
				}
			}

			options = append(options, postgres.WithSchemaRepository(schema))
			db, err := postgres.New(ctx, dsn, options...)
			if err != nil {
				return err
			}
			defer db.Close()

			return db.Schema().Upgrade(ctx)
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}
