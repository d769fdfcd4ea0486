package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/adreport/internal/config"
	"github.com/TobiSchelling/adreport/internal/creative"
	"github.com/TobiSchelling/adreport/internal/database"
	"github.com/TobiSchelling/adreport/internal/enrich"
	"github.com/TobiSchelling/adreport/internal/exposure"
	"github.com/TobiSchelling/adreport/internal/llm"
	"github.com/TobiSchelling/adreport/internal/logging"
	"github.com/TobiSchelling/adreport/internal/report"
	"github.com/TobiSchelling/adreport/internal/server"
	"github.com/TobiSchelling/adreport/internal/taxonomy"
	"github.com/TobiSchelling/adreport/internal/voc"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zap.NewNop()
)

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "adreport",
	Short:   "Ad creative effectiveness reports",
	Long:    "adreport classifies ad creatives, weights them by exposure, aggregates the batch and compares it with voice-of-customer themes.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		config.LoadEnv()
		path, err := config.ResolveConfigPath(configPath)
		switch {
		case err == nil:
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		case configPath != "":
			return err
		default:
			// No config anywhere: run on built-in defaults.
			cfg = config.Default()
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.File)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("adreport %s (taxonomy %s)\n", version, taxonomy.SchemaVersion)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/adreport/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to choose an LLM provider and API key variables.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and provider status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Printf("Ads: %d\n", stats.Ads)
		fmt.Printf("VOC: %d topics, %d verbatims\n", stats.VOCTopics, stats.VOCVerbatims)
		fmt.Println("\nReports:")
		for _, s := range []string{report.StatusPending, report.StatusRunning, report.StatusComplete, report.StatusFailed} {
			fmt.Printf("  %s: %d\n", s, stats.ReportsByStatus[s])
		}

		provider := newProvider(cmd.Context())
		fmt.Println()
		if provider == nil {
			fmt.Println("LLM: none available (reports will use rule classification only)")
		} else {
			fmt.Printf("LLM: %s\n", provider.Name())
		}
		return nil
	},
}

// --- import commands ---

var replaceAds bool

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import ads or a VOC corpus from JSON",
}

var importAdsCmd = &cobra.Command{
	Use:   "ads <file.json>",
	Short: "Import an ad export (array of ads or {\"ads\": [...]})",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		ads, err := creative.DecodeAds(data)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if replaceAds {
			if err := db.ClearAds(); err != nil {
				return fmt.Errorf("clearing ads: %w", err)
			}
		}
		n, err := db.UpsertAds(ads)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d of %d ads.\n", n, len(ads))
		return nil
	},
}

var importVOCCmd = &cobra.Command{
	Use:   "voc <file.json>",
	Short: "Replace the VOC corpus with a {\"categories\": [...]} file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		var corpus voc.Corpus
		if err := json.Unmarshal(data, &corpus); err != nil {
			return fmt.Errorf("parsing VOC corpus: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ReplaceCorpus(corpus)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d VOC topics in %d categories.\n", n, len(corpus.Categories))
		return nil
	},
}

func init() {
	importAdsCmd.Flags().BoolVar(&replaceAds, "replace", false, "Delete existing ads before importing")
	importCmd.AddCommand(importAdsCmd)
	importCmd.AddCommand(importVOCCmd)
}

// --- run command ---

var (
	cutoffFlag    string
	reportEndFlag string
	withVOC       bool
	noLLM         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze all imported ads and store a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(cutoffFlag, reportEndFlag, withVOC)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		gen := newGenerator(ctx, db, !noLLM)
		out, err := gen.Generate(ctx, req)
		if errors.Is(err, report.ErrNoAds) {
			return fmt.Errorf("%w; import some with 'adreport import ads <file.json>'", err)
		}
		if err != nil {
			return err
		}

		fmt.Println(report.RenderMarkdown(out))
		fmt.Printf("Report %s stored. Run 'adreport serve' to browse it.\n", out.ID)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&cutoffFlag, "cutoff", "", "Cutoff date closing open delivery windows (default: report end, then now)")
	runCmd.Flags().StringVar(&reportEndFlag, "report-end", "", "End date of the reporting window")
	runCmd.Flags().BoolVar(&withVOC, "voc", false, "Include the VOC comparison")
	runCmd.Flags().BoolVar(&noLLM, "no-llm", false, "Skip LLM enrichment and use rule classification only")
}

func buildRequest(cutoff, reportEnd string, compareVOC bool) (report.Request, error) {
	req := report.Request{CompareVOC: compareVOC}
	if cutoff != "" {
		t, ok := exposure.ParseDate(cutoff)
		if !ok {
			return req, fmt.Errorf("invalid --cutoff %q", cutoff)
		}
		req.Cutoff = t
	}
	if reportEnd != "" {
		t, ok := exposure.ParseDate(reportEnd)
		if !ok {
			return req, fmt.Errorf("invalid --report-end %q", reportEnd)
		}
		req.ReportEnd = t
	}
	return req, nil
}

// --- report command ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect stored reports",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		reports, err := db.ListReports(50)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Println("No reports yet. Create one with: adreport run")
			return nil
		}
		for _, r := range reports {
			created := ""
			if r.CreatedAt != nil {
				created = *r.CreatedAt
			}
			fmt.Printf("  %s  %-8s  %d/%d  %s\n", r.ID, r.Status, r.ProgressCurrent, r.ProgressTotal, created)
		}
		return nil
	},
}

var reportJSON bool

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		r, err := db.GetReport(args[0])
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("report %s not found", args[0])
		}
		if err != nil {
			return err
		}

		if r.Status != report.StatusComplete || r.ReportJSON == nil {
			fmt.Printf("Report %s: %s (%d/%d ads)\n", r.ID, r.Status, r.ProgressCurrent, r.ProgressTotal)
			if r.Error != nil {
				fmt.Printf("  Error: %s\n", *r.Error)
			}
			return nil
		}

		if reportJSON {
			fmt.Println(*r.ReportJSON)
			return nil
		}
		out, err := report.Decode([]byte(*r.ReportJSON))
		if err != nil {
			return err
		}
		fmt.Print(report.RenderMarkdown(out))
		return nil
	},
}

func init() {
	reportShowCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the raw report JSON")
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
}

// --- compare command ---

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare imported ads against the VOC corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ads, err := db.ListAds()
		if err != nil {
			return err
		}
		corpus, err := db.LoadCorpus()
		if err != nil {
			return err
		}

		themes := voc.BuildThemes(corpus, cfg.Report.VOCSampleSize)
		res, err := voc.Compare(themes, ads)
		if err != nil {
			return err
		}
		if res.ThemeCount == 0 {
			fmt.Println("No VOC themes. Import a corpus with: adreport import voc <file.json>")
			return nil
		}

		byScore := append([]voc.AdResult(nil), res.Ads...)
		sort.SliceStable(byScore, func(i, j int) bool { return byScore[i].Score > byScore[j].Score })
		fmt.Printf("%d ads against %d themes:\n\n", len(res.Ads), res.ThemeCount)
		for _, a := range byScore {
			fmt.Printf("  %-24s %-6s %.2f  %d hit\n", a.AdID, a.Label, a.Score, len(a.HitThemes))
		}

		if len(res.Overlooked) > 0 {
			fmt.Println("\nOverlooked themes:")
			for _, t := range res.Overlooked {
				fmt.Printf("  %s (%d verbatims)\n", t.Key, t.VerbatimCount)
				for _, s := range t.Sample {
					fmt.Printf("      %q\n", s)
				}
			}
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, db, newGenerator(ctx, db, true), port, logger)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func newProvider(ctx context.Context) llm.Provider {
	if ctx == nil {
		ctx = context.Background()
	}
	c := cfg.LLM
	return llm.CreateProvider(ctx, llm.Options{
		Provider:        c.Provider,
		Model:           c.Model,
		OllamaURL:       c.OllamaURL,
		OpenAIModel:     c.OpenAIModel,
		APIKeyEnv:       c.APIKeyEnv,
		GeminiModel:     c.GeminiModel,
		GeminiAPIKeyEnv: c.GeminiAPIKeyEnv,
	}, logger)
}

func newGenerator(ctx context.Context, db *database.DB, useLLM bool) *report.Generator {
	var enricher enrich.Enricher
	if useLLM {
		// A nil provider must stay a nil interface, not a nil *LLMEnricher.
		if provider := newProvider(ctx); provider != nil {
			enricher = enrich.NewLLMEnricher(provider, logger,
				enrich.WithPrimaryTextCap(cfg.LLM.PrimaryTextCap),
				enrich.WithMaxTokens(cfg.LLM.MaxTokens),
			)
		}
	}
	processor := report.NewProcessor(enricher, cfg.Report.Concurrency, logger)
	return report.NewGenerator(db, db, db, processor, cfg.Report.VOCSampleSize, logger)
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.DBPath(), logger)
}
