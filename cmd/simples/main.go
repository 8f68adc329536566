package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/nexconsult/simples-nacional/internal/config"
	"github.com/nexconsult/simples-nacional/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

type metadata struct {
	config *config.Config
	logger *logrus.Logger
	r      io.Reader
	w      io.Writer
	e      io.Writer
}

var version = "dev"

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newApp(r io.Reader, w io.Writer, e io.Writer) *cli.App {
	m := &metadata{r: r, w: w, e: e}

	app := cli.NewApp()
	app.Name = "simples"
	app.Usage = "resolve Simples Nacional and MEI enrollment for a list of CNPJs"
	app.Version = version
	app.Writer = w
	app.ErrWriter = e
	app.Metadata = map[string]interface{}{"config": m}

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "input, i",
			Usage: " read the JSON array of CNPJs from `FILE` instead of stdin",
		},
		cli.StringFlag{
			Name:  "output, o",
			Usage: " write the JSON result to `FILE` instead of stdout",
		},
		cli.StringFlag{
			Name:  "cache-backend",
			Usage: " cache `BACKEND` [file|redis|mongo|memory]",
		},
		cli.StringFlag{
			Name:  "cache-file",
			Usage: " cache `FILE` for the file backend",
		},
		cli.DurationFlag{
			Name:  "delay",
			Usage: " pause `DURATION` between consecutive lookups",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: " log `LEVEL` [debug|info|warn|error]",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: " log `FORMAT` [text|json]",
		},
	}

	app.Before = func(c *cli.Context) error {
		return setup(c, m)
	}

	app.Action = runResolve

	app.Commands = []cli.Command{
		{
			Name:   "resolve",
			Usage:  "resolve every CNPJ of the input, in order",
			Action: runResolve,
		},
		{
			Name:   "validate",
			Usage:  "normalize and check digits offline, without querying or caching",
			Action: runValidate,
		},
		{
			Name:   "cache-stats",
			Usage:  "count cached results and how many are still fresh",
			Action: runCacheStats,
		},
	}

	return app
}

// setup loads configuration from the environment and applies flag overrides
func setup(c *cli.Context, m *metadata) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if c.IsSet("cache-backend") {
		cfg.Cache.Backend = c.String("cache-backend")
	}
	if c.IsSet("cache-file") {
		cfg.Cache.File = c.String("cache-file")
	}
	if c.IsSet("delay") {
		cfg.Simples.RateLimitDelay = c.Duration("delay")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	cfg.Log.Format = c.String("log-format")

	if err := cfg.Validate(); err != nil {
		return err
	}

	m.config = cfg
	m.logger = logger.NewWithOutput(cfg.Log.Level, cfg.Log.Format, m.e)
	return nil
}
