package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/refkeeper/internal/server"
	"github.com/dmitrijs2005/refkeeper/internal/server/auth"
	"github.com/dmitrijs2005/refkeeper/internal/server/config"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

func printBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\nBuild date: %s\nBuild commit: %s\n", buildVersion, buildDate, buildCommit)
}

const usage = `usage:
  authority [-a addr] [-d dsn] [-s secret] [-l level] [-c config.json]
  authority token <user-id> [-s secret] [-t minutes]
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "authority: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}

	if cmd, rest := subcommand(args); cmd != "" {
		if cmd != "token" || len(rest) != 1 {
			fmt.Fprint(out, usage)
			return fmt.Errorf("unknown command %q", cmd)
		}
		tok, err := auth.GenerateToken(rest[0], []byte(cfg.SecretKey), cfg.AccessTokenValidity)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, tok)
		return nil
	}

	printBuildData(out)

	logger := server.NewLogger(cfg.LogLevel)
	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	app.Run(ctx)
	return nil
}

// subcommand returns the first positional argument and the positional
// arguments after it. Flag values are skipped.
func subcommand(args []string) (string, []string) {
	var pos []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if len(a) > 1 && strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
			continue
		}
		pos = append(pos, a)
	}
	if len(pos) == 0 {
		return "", nil
	}
	return pos[0], pos[1:]
}
