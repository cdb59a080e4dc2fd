package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/flagx"
)

var handledFlags = []string{"-a", "-d", "-s", "-t", "-r", "-k", "-e", "-p", "-h", "-help", "--help"}

// exit ends the process after -h has printed the usage.
var exit = os.Exit

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-e string   logger mode (local, dev, prod)
//	-k string   storage driver (postgres, sqlite, memory)
//	-d string   database DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-p int      bcrypt cost for new password hashes
//
// Only the flags above are looked at (see flagx.FilterArgs), so the config
// file flags and anything else on the command line pass through untouched.
// Token validity flags are whole minutes and only replace the configured
// durations when given.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("usersvc", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage of %s:\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\n%s", EnvUsage())
	}

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.Env, "e", config.Env, "logger mode")
	fs.StringVar(&config.StorageDriver, "k", config.StorageDriver, "storage driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.IntVar(&config.PasswordHashCost, "p", config.PasswordHashCost, "bcrypt cost")

	accessMinutes := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshMinutes := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	if err := fs.Parse(flagx.FilterArgs(args, handledFlags)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			exit(0)
			return
		}
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshMinutes) * time.Minute
		}
	})
}
