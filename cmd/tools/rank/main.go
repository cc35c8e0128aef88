// Command rank scores funding opportunities against a case and prints the
// ranking as a table.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/app"
	"github.com/david/casematch/internal/config"
	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/models"
	"github.com/david/casematch/internal/pipeline"
)

const justificationWidth = 60

type options struct {
	caseID        string
	title         string
	description   string
	category      string
	opportunities string
	memory        bool
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank funding opportunities against a case",
		Long: `Rank scores funding opportunities against a case.

Examples:
  # Research and rank funding for a stored case
  rank --case 6f1c...

  # Rank opportunities from a file against an ad-hoc case
  rank --title "Budowa hali" --description "Dotacja 500000 zł" --opportunities opps.json --memory
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.caseID, "case", "", "ID of a stored case")
	cmd.Flags().StringVar(&opts.title, "title", "", "Case title (ad-hoc case)")
	cmd.Flags().StringVar(&opts.description, "description", "", "Case description (ad-hoc case)")
	cmd.Flags().StringVar(&opts.category, "category", "", "Case category (ad-hoc case)")
	cmd.Flags().StringVarP(&opts.opportunities, "opportunities", "o", "", "JSON file with an array of opportunities")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "Use the in-memory record store")
	cmd.MarkFlagsMutuallyExclusive("case", "title")
	return cmd
}

func run(ctx context.Context, out io.Writer, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.caseID == "" && strings.TrimSpace(opts.title+opts.description) == "" {
		return eris.New("rank: either --case or --title/--description is required")
	}
	if opts.caseID == "" && opts.opportunities == "" {
		return eris.New("rank: --opportunities is required for an ad-hoc case")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return err
	}
	if opts.memory {
		cfg.Database.Memory = true
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.caseID != "" && opts.opportunities == "" {
		ranked, err := a.Pipeline.ResearchFunding(ctx, opts.caseID)
		if err != nil {
			return err
		}
		renderRanking(out, ranked)
		return nil
	}

	opps, err := loadOpportunities(opts.opportunities)
	if err != nil {
		return err
	}
	c, err := resolveCase(ctx, a.Store, opts)
	if err != nil {
		return err
	}
	zap.L().Info("rank: scoring opportunities", zap.String("case", c.Title), zap.Int("count", len(opps)))
	renderRanking(out, a.Pipeline.Rank(ctx, c, opps))
	return nil
}

func resolveCase(ctx context.Context, store db.RecordStore, opts options) (models.Case, error) {
	if opts.caseID == "" {
		return models.Case{
			Title:       strings.TrimSpace(opts.title),
			Description: strings.TrimSpace(opts.description),
			Category:    models.ParseCategory(opts.category),
			Status:      models.CaseStatusPending,
		}, nil
	}
	rec, err := store.Get(ctx, db.TableCases, opts.caseID)
	if err != nil {
		return models.Case{}, eris.Wrapf(err, "rank: load case %s", opts.caseID)
	}
	return db.Decode[models.Case](rec)
}

func loadOpportunities(path string) ([]models.FundingOpportunity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "rank: read opportunities")
	}
	var opps []models.FundingOpportunity
	if err := json.Unmarshal(data, &opps); err != nil {
		return nil, eris.Wrap(err, "rank: parse opportunities")
	}
	if len(opps) == 0 {
		return nil, eris.Errorf("rank: no opportunities in %s", path)
	}
	return opps, nil
}

func renderRanking(out io.Writer, ranked []pipeline.RankedOpportunity) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"#", "Name", "Score", "Semantic", "Keyword", "Category", "Budget", "Deadline", "Justification"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Justification", WidthMax: justificationWidth},
	})

	for i, r := range ranked {
		deadline := r.Deadline
		if r.IsExpired {
			deadline += " (expired)"
		}
		t.AppendRow(table.Row{
			i + 1,
			ai.Truncate(r.Name, 40),
			fmt.Sprintf("%.2f", r.RelevanceScore),
			fmt.Sprintf("%.2f", r.Components.Semantic),
			fmt.Sprintf("%.2f", r.Components.Keyword),
			fmt.Sprintf("%.2f", r.Components.Category),
			fmt.Sprintf("%.2f", r.Components.Budget),
			deadline,
			r.Justification,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d opportunities", len(ranked))})
	t.Render()
}
