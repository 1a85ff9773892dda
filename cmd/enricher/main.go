// Command enricher drives the ingredient library from the terminal: it
// enriches ingredients from the external sources, imports regulatory
// standards, and propagates usage limits onto the stored library.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"essentia/internal/config"
	"essentia/internal/db"
	"essentia/internal/enrich"
	applog "essentia/internal/log"
	"essentia/internal/regulatory"
	"essentia/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the wired pipeline for one command invocation.
type app struct {
	cfg      config.Config
	store    *store.Store
	enricher *enrich.Enricher
	reg      *regulatory.Service
	ownerID  uint
}

var ownerEmail string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "enricher",
		Short:         "Fragrance ingredient enrichment and regulatory sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&ownerEmail, "owner", "",
		"email of the owning user (defaults to DEFAULT_OWNER_EMAIL, then the first user)")

	root.AddCommand(
		newSearchCmd(),
		newEnrichCmd(),
		newBulkCmd(),
		newImportStandardsCmd(),
		newSyncLimitsCmd(),
		newStatusCmd(),
		newPingCmd(),
	)
	return root
}

// setup loads config, connects the database, and wires the pipeline.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := applog.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	database, err := db.Configure(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("configure database: %w", err)
	}

	st := store.New(database)
	reg := regulatory.NewService(st)

	httpClient := &http.Client{Timeout: cfg.Enrich.Timeout}
	limiter := enrich.NewLimiter(map[enrich.Source]time.Duration{
		enrich.SourcePubChem:    cfg.Enrich.ChemInterval,
		enrich.SourceGoodScents: cfg.Enrich.OdorInterval,
	})

	enricher, err := enrich.New(enrich.Config{
		Sources: []enrich.SourceAdapter{
			enrich.NewPubChemAdapter(cfg.Enrich.ChemSourceURL, httpClient, limiter, cfg.Enrich.RetryLimit),
			enrich.NewGoodScentsAdapter(cfg.Enrich.OdorSourceURL, httpClient, limiter, cfg.Enrich.RetryLimit),
		},
		Cache:   enrich.NewCache(cfg.Enrich.CacheTTL),
		Limiter: limiter,
		Store:   st,
		Syncer:  reg,
	})
	if err != nil {
		return nil, err
	}

	email := ownerEmail
	if email == "" {
		email = cfg.Enrich.DefaultOwnerEmail
	}
	ownerID, err := st.ResolveOwner(ctx, email)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: st, enricher: enricher, reg: reg, ownerID: ownerID}, nil
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <name>",
		Short: "Query the sources for an ingredient without saving anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}

			result, err := a.enricher.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSearch(cmd, args[0], result)
			return nil
		},
	}
}

func newEnrichCmd() *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "enrich <name>",
		Short: "Enrich one ingredient and save it to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}

			result, err := a.enricher.Enrich(cmd.Context(), a.ownerID, args[0], overwrite || a.cfg.Enrich.Overwrite)
			if err != nil {
				return err
			}
			printEnrich(cmd, args[0], result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace stored field values with source values")
	return cmd
}

func newBulkCmd() *cobra.Command {
	var (
		file      string
		missing   bool
		limit     int
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "bulk [names...]",
		Short: "Enrich a batch of ingredients",
		Long: "Enrich the named ingredients, the names listed in --file (one per line),\n" +
			"or with --missing every stored ingredient that still lacks a CAS number\n" +
			"or an odor profile.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}

			replace := overwrite || a.cfg.Enrich.Overwrite

			var results []enrich.ItemResult
			if missing {
				results, err = a.enricher.BulkEnrichMissing(cmd.Context(), a.ownerID, limit, replace)
				if err != nil {
					return err
				}
			} else {
				names, err := collectBulkNames(args, file)
				if err != nil {
					return err
				}
				results = a.enricher.BulkEnrich(cmd.Context(), a.ownerID, names, replace)
			}
			if len(results) == 0 {
				cmd.Println("Nothing to enrich.")
				return nil
			}

			enriched, missed, failed := 0, 0, 0
			for _, item := range results {
				switch {
				case item.Err != nil:
					failed++
					cmd.Printf("  %-40s error: %v\n", item.Name, item.Err)
				case !item.Result.Found:
					missed++
					cmd.Printf("  %-40s no match\n", item.Name)
				default:
					enriched++
					cmd.Printf("  %-40s %s\n", item.Name, describeUpsert(item.Result.Upsert))
				}
			}
			cmd.Printf("Enriched %d of %d (%d misses, %d failures)\n",
				enriched, len(results), missed, failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "file of ingredient names, one per line")
	cmd.Flags().BoolVar(&missing, "missing", false, "enrich stored ingredients that lack a CAS number or odor profile")
	cmd.Flags().IntVar(&limit, "limit", 0, "with --missing, cap the batch size")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace stored field values with source values")
	return cmd
}

func collectBulkNames(args []string, file string) ([]string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read names file: %w", err)
		}
		var names []string
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				names = append(names, line)
			}
		}
		return names, nil
	case len(args) > 0:
		return args, nil
	default:
		return nil, fmt.Errorf("name arguments, --file, or --missing required")
	}
}

func newImportStandardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-standards <path>",
		Short: "Import a regulatory standards table (CSV/TSV) or prohibition notice (PDF)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}

			stats, err := a.reg.ImportFile(cmd.Context(), args[0], a.ownerID)
			if err != nil {
				return err
			}

			cmd.Printf("Imported %d standards (%d new, %d updated)\n",
				stats.Rows, stats.Created, stats.Updated)
			for _, rowErr := range stats.Errors {
				cmd.Printf("  rejected %v\n", rowErr)
			}
			return nil
		},
	}
}

func newSyncLimitsCmd() *cobra.Command {
	var ingredient string
	cmd := &cobra.Command{
		Use:   "sync-limits",
		Short: "Propagate imported limits onto ingredients by CAS number",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}

			if ingredient != "" {
				ing, err := a.store.FindByNameOwner(cmd.Context(), a.ownerID, ingredient)
				if err != nil {
					return fmt.Errorf("find ingredient %q: %w", ingredient, err)
				}
				synced, err := a.reg.SyncIngredient(cmd.Context(), ing.ID)
				if err != nil {
					return err
				}
				if synced {
					cmd.Printf("Applied limits to %q (CAS %s)\n", ing.Name, ing.CAS)
				} else {
					cmd.Printf("No standard matches %q\n", ing.Name)
				}
				return nil
			}

			stats, err := a.reg.SyncAll(cmd.Context(), a.ownerID)
			if err != nil {
				return err
			}
			cmd.Printf("Synced %d of %d ingredients with a CAS number\n", stats.Synced, stats.Scanned)
			return nil
		},
	}
	cmd.Flags().StringVar(&ingredient, "ingredient", "", "sync a single ingredient by name")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show library statistics and pipeline configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}

			stats, err := a.store.Stats(cmd.Context(), a.ownerID)
			if err != nil {
				return err
			}

			cmd.Printf("Owner #%d\n", a.ownerID)
			cmd.Printf("Ingredients:  %d (%s with CAS, %s with odor profile)\n",
				stats.Ingredients,
				share(stats.WithCAS, stats.Ingredients),
				share(stats.WithOdorProfile, stats.Ingredients))
			cmd.Printf("Synonyms:     %d\n", stats.Synonyms)
			cmd.Printf("Standards:    %d\n", stats.Standards)
			cmd.Println()
			cmd.Printf("Sources:      %s, %s\n", a.cfg.Enrich.ChemSourceURL, a.cfg.Enrich.OdorSourceURL)
			cmd.Printf("Pacing:       %s chem, %s odor, %d retries\n",
				a.cfg.Enrich.ChemInterval, a.cfg.Enrich.OdorInterval, a.cfg.Enrich.RetryLimit)
			cmd.Printf("Cache TTL:    %s\n", a.cfg.Enrich.CacheTTL)
			return nil
		},
	}
}

func share(part, total int64) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", 100*part/total)
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping-db",
		Short: "Check database connectivity and run migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			database, err := db.Configure(cfg.Database)
			if err != nil {
				return err
			}
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Database reachable, schema migrated.")
			return nil
		},
	}
}

func printSearch(cmd *cobra.Command, name string, result *enrich.SearchResult) {
	if !result.Found {
		cmd.Printf("No source has a record for %q\n", name)
		printSourceErrors(cmd, result.Errors)
		return
	}

	c := result.Candidate
	cmd.Printf("Found %q via %s\n", name, joinSources(c.Sources))
	if result.Ambiguous {
		cmd.Println("  (sources disagreed; showing the closest match)")
	}
	printField(cmd, "Name", c.Name)
	printField(cmd, "CAS", c.CAS)
	printField(cmd, "IUPAC name", c.IUPACName)
	printField(cmd, "Formula", c.Formula)
	printField(cmd, "Mol. weight", c.MolecularWeight)
	printField(cmd, "Odor", c.OdorDescription)
	printField(cmd, "Odor family", c.OdorFamily)
	printField(cmd, "Appearance", c.Appearance)
	printField(cmd, "Flash point", c.FlashPoint)
	printField(cmd, "Solubility", c.Solubility)
	printField(cmd, "LogP", c.LogP)
	printField(cmd, "Shelf life", c.ShelfLife)
	printField(cmd, "EINECS", c.EINECS)
	printField(cmd, "Type", c.Type)
	printField(cmd, "Tenacity", c.Tenacity)
	if len(c.Synonyms) > 0 {
		printField(cmd, "Synonyms", fmt.Sprintf("%d known", len(c.Synonyms)))
	}
	printSourceErrors(cmd, result.Errors)
}

func printEnrich(cmd *cobra.Command, name string, result *enrich.EnrichResult) {
	if !result.Found {
		cmd.Printf("No source has a record for %q; nothing saved\n", name)
		printSourceErrors(cmd, result.Errors)
		return
	}

	cmd.Printf("%s: %s\n", name, describeUpsert(result.Upsert))
	if len(result.Upsert.Conflicts) > 0 {
		cmd.Printf("  kept stored values for: %s\n", strings.Join(result.Upsert.Conflicts, ", "))
	}
	if result.Synced {
		cmd.Println("  regulatory limits applied")
	}
	printSourceErrors(cmd, result.Errors)
}

func describeUpsert(u *enrich.UpsertResult) string {
	switch {
	case u == nil:
		return "nothing saved"
	case u.Created:
		return "created"
	case len(u.Updated) > 0:
		return "filled " + strings.Join(u.Updated, ", ")
	default:
		return "already complete"
	}
}

func printField(cmd *cobra.Command, label, value string) {
	if value != "" {
		cmd.Printf("  %-12s %s\n", label+":", value)
	}
}

func printSourceErrors(cmd *cobra.Command, errs map[enrich.Source]error) {
	for source, err := range errs {
		cmd.Printf("  warning: %s unavailable: %v\n", source, err)
	}
}

func joinSources(sources []enrich.Source) string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
