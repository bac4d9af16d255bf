package main

import (
	"fmt"
	"os"

	"github.com/shopware/phpls/internal/inheritance"
	"github.com/shopware/phpls/internal/php"
	"github.com/shopware/phpls/internal/rpc"
	"github.com/shopware/phpls/internal/scope"
	treesitterhelper "github.com/shopware/phpls/internal/tree_sitter_helper"
	"github.com/urfave/cli/v2"
)

var indexFlag = &cli.BoolFlag{
	Name:  "index",
	Usage: "Index the PSR-4 directories before resolving",
}

// withProject runs fn against the project selected by the global flags.
func withProject(c *cli.Context, fn func(p *project) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	p, err := openProject(c.Context, cfg, c.Bool("index"))
	if err != nil {
		return err
	}
	defer p.Close()

	return fn(p)
}

func fileAndName(c *cli.Context) (string, string, error) {
	if c.NArg() != 2 {
		return "", "", fmt.Errorf("expected <file> <name>, got %d arguments", c.NArg())
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

var resolveCommand = &cli.Command{
	Name:      "resolve",
	Usage:     "Resolve a class name as written in a file",
	ArgsUsage: "<file> <name>",
	Flags:     []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		file, name, err := fileAndName(c)
		if err != nil {
			return err
		}

		return withProject(c, func(p *project) error {
			fileID, err := p.fileID(file)
			if err != nil {
				return err
			}

			decl := p.resolver.Context(fileID).LoadClass(name)
			return newOutput().
				set("file", fileID).
				set("name", name).
				set("class", rpc.DescribeClass(decl)).
				write(c.App.Writer)
		})
	},
}

var functionCommand = &cli.Command{
	Name:      "function",
	Usage:     "Resolve a function name as written in a file",
	ArgsUsage: "<file> <name>",
	Flags:     []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		file, name, err := fileAndName(c)
		if err != nil {
			return err
		}

		return withProject(c, func(p *project) error {
			fileID, err := p.fileID(file)
			if err != nil {
				return err
			}

			fn := p.resolver.Context(fileID).LoadFunction(name)
			return newOutput().
				set("file", fileID).
				set("name", name).
				set("function", rpc.DescribeFunction(fn)).
				write(c.App.Writer)
		})
	},
}

var membersCommand = &cli.Command{
	Name:      "members",
	Usage:     "List the members of a class including inherited ones",
	ArgsUsage: "<file> <class>",
	Flags: []cli.Flag{
		indexFlag,
		&cli.StringFlag{
			Name:  "receiver",
			Usage: `Access perspective: "$this", "self", "static", "parent" or empty for outside access`,
		},
		&cli.BoolFlag{
			Name:  "static",
			Usage: "Only static members",
		},
		&cli.BoolFlag{
			Name:  "magic",
			Usage: "Include magic methods",
		},
	},
	Action: func(c *cli.Context) error {
		file, name, err := fileAndName(c)
		if err != nil {
			return err
		}

		return withProject(c, func(p *project) error {
			fileID, err := p.fileID(file)
			if err != nil {
				return err
			}

			decl := p.resolver.Context(fileID).LoadClass(name)
			if decl == nil {
				return cli.Exit(fmt.Sprintf("class %s not found", name), 1)
			}

			members := rpc.ClassMembers(p.resolver, decl, inheritance.Filter{
				Access:       inheritance.ParseAccess(c.String("receiver")),
				StaticOnly:   c.Bool("static"),
				IncludeMagic: c.Bool("magic"),
			})
			return newOutput().
				set("file", fileID).
				set("name", name).
				set("members", members).
				write(c.App.Writer)
		})
	},
}

var scopeCommand = &cli.Command{
	Name:      "scope",
	Usage:     "List the variables visible at a position, or the types of one of them",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		indexFlag,
		&cli.UintFlag{
			Name:  "offset",
			Usage: "Byte offset in the file",
		},
		&cli.UintFlag{
			Name:  "line",
			Usage: "Line, starting at 1",
		},
		&cli.UintFlag{
			Name:  "column",
			Usage: "Byte column, starting at 1",
			Value: 1,
		},
		&cli.StringFlag{
			Name:  "variable",
			Usage: "Resolve the types of this variable, e.g. $order",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("expected <file>, got %d arguments", c.NArg())
		}
		if !c.IsSet("offset") && !c.IsSet("line") {
			return fmt.Errorf("either --offset or --line is required")
		}

		return withProject(c, func(p *project) error {
			fileID, err := p.fileID(c.Args().First())
			if err != nil {
				return err
			}
			source, _ := p.resolver.Source(fileID)

			offset := c.Uint("offset")
			if c.IsSet("line") {
				if c.Uint("line") == 0 || c.Uint("column") == 0 {
					return fmt.Errorf("line and column start at 1")
				}
				position := treesitterhelper.Position{
					Line:      uint32(c.Uint("line") - 1),
					Character: uint32(c.Uint("column") - 1),
				}
				at, ok := treesitterhelper.OffsetAt(source, position)
				if !ok {
					return fmt.Errorf("line %d is outside of %s", c.Uint("line"), fileID)
				}
				offset = at
			}
			offset = min(offset, uint(len(source)))

			position := treesitterhelper.PositionAt(source, offset)
			out := newOutput().
				set("file", fileID).
				set("offset", offset).
				set("line", position.Line+1).
				set("column", position.Character+1)

			variable := c.String("variable")
			if variable == "" {
				names := scope.VariablesInScope(source, offset)
				if names == nil {
					names = []string{}
				}
				return out.set("variables", names).write(c.App.Writer)
			}

			env := p.resolver.Context(fileID)
			types := scope.TypeStrings(source, offset, variable, env)
			if types == nil {
				types = []string{}
			}
			return out.
				set("variable", variable).
				set("types", types).
				set("classes", rpc.DescribeClasses(scope.VariableTypes(source, offset, variable, env))).
				write(c.App.Writer)
		})
	},
}

var dumpASTCommand = &cli.Command{
	Name:      "dump-ast",
	Usage:     "Print the syntax tree of a PHP file",
	ArgsUsage: "<file>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("expected <file>, got %d arguments", c.NArg())
		}

		path := c.Args().First()
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		return php.DumpAST(c.App.Writer, path, content)
	},
}
