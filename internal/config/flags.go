package config

import (
	"flag"
	"os"
	"time"

	"github.com/mkuznecovs/authkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-n string   table schema namespace
//	-p string   table name prefix
//	-i int      expired-token sweep interval, minutes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-n", "-p", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.TableSchema, "n", config.TableSchema, "table schema namespace")
	fs.StringVar(&config.TablePrefix, "p", config.TablePrefix, "table name prefix")

	sweepInterval := fs.Int("i", int(config.SweepInterval.Minutes()), "expired token sweep interval (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SweepInterval = time.Duration(*sweepInterval) * time.Minute
}
