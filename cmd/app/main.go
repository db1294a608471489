package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tribuna/internal"
	"github.com/starford/tribuna/internal/cnj"
	pkgconfig "github.com/starford/tribuna/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	read, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !read {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func options(cfg *internal.Config) []internal.Option {
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, options(cfg)...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, options(cfg)...)
}

func resolve(_ context.Context, cmd *cli.Command) error {
	numbers := cmd.Args().Slice()
	if len(numbers) == 0 {
		return fmt.Errorf("at least one CNJ number is required")
	}
	if cmd.Bool("json") {
		out := make([]cnj.Descriptor, len(numbers))
		for i, n := range numbers {
			out[i] = cnj.ResolveTribunal(n)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, n := range numbers {
		fmt.Printf("%s\t%s\n", cnj.Format(n), cnj.ResolveTribunal(n).Label())
	}
	return nil
}

func importPayloads(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one payload file is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	results, err := internal.ImportFiles(ctx, paths, options(cfg)...)
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("%s\terror: %v\n", r.Path, r.Err)
			continue
		}
		fmt.Printf("%s\tcase %s\tadded %d\tunread %d\n", r.Path, r.Result.CaseID, r.Result.Added, r.Result.Unread)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d payloads failed", failed, len(results))
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "tribuna",
		Usage:   "CNJ tribunal resolver and Datajud movement tracker",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, monitor and inbox watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: serveMCP,
			},
			{
				Name:      "resolve",
				Usage:     "Print the tribunal behind CNJ numbers",
				ArgsUsage: "<numero>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print descriptors as JSON"},
				},
				Action: resolve,
			},
			{
				Name:      "import",
				Usage:     "Import Datajud search responses from files",
				ArgsUsage: "<file>...",
				Action:    importPayloads,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
