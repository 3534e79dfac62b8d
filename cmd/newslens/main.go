package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/newslens/newslens/internal/config"
	"github.com/newslens/newslens/internal/embcache"
	"github.com/newslens/newslens/internal/embed"
	"github.com/newslens/newslens/internal/pipeline"
	"github.com/newslens/newslens/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		if err := runPipeline(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "trend":
		if err := runTrend(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "seed":
		if err := runSeed(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("newslens %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// parseCommon extracts the shared --config flag and returns the remaining
// positional args.
func parseCommon(args []string) (configPath string, rest []string, err error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || arg == "-c":
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("%s requires a path", arg)
			}
			i++
			configPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		default:
			rest = append(rest, arg)
		}
	}
	return configPath, rest, nil
}

// buildRunner opens the store and wires the pipeline from config. The
// returned cleanup closes the store.
func buildRunner(cfg *config.Config, logger *log.Logger) (*pipeline.Runner, func(), error) {
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	embedder, err := embed.New(cfg.Embedder)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("building embedder: %w", err)
	}
	cache, err := embcache.New(cfg.Cache, cfg.Embedder.Dimensions, cfg.WindowHorizon())
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("building cache: %w", err)
	}
	runner := pipeline.NewRunner(cfg, st, embedder, cache, logger)
	return runner, func() { st.Close() }, nil
}

func runPipeline(args []string) error {
	configPath, rest, err := parseCommon(args)
	if err != nil {
		return err
	}
	cfg, path, err := config.Resolve(configPath)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	logger.Printf("using config %s, database %s", path, cfg.DBPath)

	runner, cleanup, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if len(rest) > 0 {
		for _, topic := range rest {
			if _, err := runner.RunTopic(ctx, topic); err != nil {
				return fmt.Errorf("topic %s: %w", topic, err)
			}
		}
		return nil
	}

	reports, err := runner.RunAll(ctx)
	for _, r := range reports {
		if r.Skipped {
			fmt.Printf("%-12s skipped (empty window)\n", r.Topic)
			continue
		}
		fmt.Printf("%-12s %d articles -> %d clusters (%d noise)\n", r.Topic, r.Articles, r.Clusters, r.Noise)
	}
	return err
}

func runServe(args []string) error {
	configPath, _, err := parseCommon(args)
	if err != nil {
		return err
	}
	cfg, path, err := config.Resolve(configPath)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	logger.Printf("using config %s, database %s", path, cfg.DBPath)

	runner, cleanup, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	scheduler := pipeline.NewScheduler(runner, cfg, logger)
	return scheduler.Run(context.Background())
}

func runTrend(args []string) error {
	configPath, rest, err := parseCommon(args)
	if err != nil {
		return err
	}
	cfg, _, err := config.Resolve(configPath)
	if err != nil {
		return err
	}

	// Default aggregates yesterday; an explicit date aggregates that day.
	now := time.Now()
	if len(rest) > 0 {
		loc, err := time.LoadLocation(cfg.Trend.Timezone)
		if err != nil {
			return fmt.Errorf("loading timezone: %w", err)
		}
		day, err := time.ParseInLocation("2006-01-02", rest[0], loc)
		if err != nil {
			return fmt.Errorf("usage: newslens trend [YYYY-MM-DD]: %w", err)
		}
		now = day.AddDate(0, 0, 1)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	runner, cleanup, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := runner.RunTrends(context.Background(), now)
	if err != nil {
		return err
	}
	fmt.Printf("aggregated %d trend rows\n", rows)
	return nil
}

// runSeed loads newline-delimited "topic<TAB>title<TAB>summary" rows from a
// file into the articles table, for local experiments without a fetcher.
func runSeed(args []string) error {
	configPath, rest, err := parseCommon(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return fmt.Errorf("usage: newslens seed <file>")
	}
	cfg, _, err := config.Resolve(configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(rest[0])
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	added := 0
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 {
			return fmt.Errorf("seed line %d: want topic<TAB>title[<TAB>summary]", i+1)
		}
		a := &store.Article{
			Topic:     fields[0],
			Title:     fields[1],
			Link:      fmt.Sprintf("seed://%s/%d", fields[0], i),
			Published: now,
			FetchedAt: now,
		}
		if len(fields) == 3 {
			a.Summary = fields[2]
		}
		if _, err := st.AddArticle(ctx, a); err != nil {
			return fmt.Errorf("seed line %d: %w", i+1, err)
		}
		added++
	}
	fmt.Printf("seeded %d articles into %s\n", added, cfg.DBPath)
	return nil
}

func runStats(args []string) error {
	configPath, _, err := parseCommon(args)
	if err != nil {
		return err
	}
	cfg, _, err := config.Resolve(configPath)
	if err != nil {
		return err
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("database: %s\n", cfg.DBPath)
	fmt.Printf("  articles:         %d\n", stats.ArticleCount)
	fmt.Printf("  clusters:         %d\n", stats.ClusterCount)
	fmt.Printf("  memberships:      %d\n", stats.ClusterArticleCount)
	fmt.Printf("  keywords:         %d\n", stats.KeywordCount)
	fmt.Printf("  trend rows:       %d\n", stats.TrendKeywordCount)

	since := time.Now().UTC().Add(-cfg.WindowHorizon())
	for _, topic := range cfg.TopicNames() {
		clusters, err := st.RecentClusters(ctx, topic, since)
		if err != nil {
			return err
		}
		if len(clusters) == 0 {
			continue
		}
		fmt.Printf("\n%s (last %dh):\n", topic, cfg.Pipeline.WindowHours)
		for _, c := range clusters {
			edges, err := st.ClusterKeywords(ctx, c.ID)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(edges))
			for _, e := range edges {
				names = append(names, e.Name)
			}
			fmt.Printf("  cluster %d (label %d, %d articles): %s\n",
				c.ID, c.Label, c.NumArticles, strings.Join(names, ", "))
		}
	}
	return nil
}

func printUsage() {
	fmt.Printf(`newslens %s — topic-scoped news clustering pipeline

Usage:
  newslens <command> [arguments]

Commands:
  run [topic...]      Run the clustering pipeline once (all topics by default)
  serve               Run the scheduler: periodic pipeline + daily trends
  trend [YYYY-MM-DD]  Aggregate daily keyword trends (default: yesterday)
  seed <file>         Load tab-separated articles for local experiments
  stats               Show table counts
  version             Print version

Flags:
  -c, --config <path> Config file (default: $NEWSLENS_CONFIG or newslens.yaml)
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
