package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "phpls",
		Usage:   "Resolve PHP classes, functions and variables like a language server would",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: <root>/.phpls.toml)",
			},
			&cli.StringFlag{
				Name:  "stubs",
				Usage: "Directory of standard declaration stubs (overrides config)",
			},
			&cli.StringFlag{
				Name:  "database",
				Usage: `Class index database, "auto" for the user cache directory (overrides config)`,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel parsers while indexing, 0 for one per CPU (overrides config)",
			},
		},
		Commands: []*cli.Command{
			resolveCommand,
			functionCommand,
			membersCommand,
			scopeCommand,
			dumpASTCommand,
			serveCommand,
		},
	}
}

func main() {
	log.SetFlags(0)

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
