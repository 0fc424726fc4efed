package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"github.com/diillson/cloud-plan-estimator/internal/application/engine"
	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/plan"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository"
	"github.com/diillson/cloud-plan-estimator/internal/shared/types"
)

// EstimateUseCase runs one estimation over every scope unit of a provider.
type EstimateUseCase struct {
	provider   repository.ProviderRepository
	exportRepo repository.ExportRepository
	console    types.ConsoleInterface
	now        func() time.Time
}

// NewEstimateUseCase creates a new estimate use case.
func NewEstimateUseCase(
	provider repository.ProviderRepository,
	exportRepo repository.ExportRepository,
	console types.ConsoleInterface,
) *EstimateUseCase {
	return &EstimateUseCase{
		provider:   provider,
		exportRepo: exportRepo,
		console:    console,
		now:        time.Now,
	}
}

// DiscoverScopes lista as unidades de escopo e aplica os filtros --scopes e
// --exclude-scopes.
func (uc *EstimateUseCase) DiscoverScopes(ctx context.Context, cfg types.RunConfig) ([]entity.ScopeUnit, error) {
	return uc.discover(ctx, engine.New(uc.provider, cfg), cfg)
}

func (uc *EstimateUseCase) discover(ctx context.Context, eng *engine.Engine, cfg types.RunConfig) ([]entity.ScopeUnit, error) {
	all, err := eng.ListScopeUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrNoScopeUnitsFound, err)
	}

	scopes := make([]entity.ScopeUnit, 0, len(all))
	for _, s := range all {
		if cfg.Included(s.ID) {
			scopes = append(scopes, s)
		}
	}
	if len(scopes) == 0 {
		return nil, entity.ErrNoScopeUnitsFound
	}
	return scopes, nil
}

// Estimate processes every scope unit and maps the results onto plan line
// items. Nothing is written.
func (uc *EstimateUseCase) Estimate(ctx context.Context, cfg types.RunConfig) (entity.Report, error) {
	env := uc.provider.EnvironmentType()
	table, err := plan.TableFor(env)
	if err != nil {
		return entity.Report{}, err
	}

	eng := engine.New(uc.provider, cfg)

	status := uc.console.Status(fmt.Sprintf("Discovering %s scope units...", env))
	scopes, err := uc.discover(ctx, eng, cfg)
	status.Stop()
	if err != nil {
		return entity.Report{}, err
	}

	uc.console.LogInfo("Estimating %d %s scope unit(s) with concurrency %d", len(scopes), env, cfg.Concurrency)

	progress := uc.console.ProgressWithTotal(len(scopes))
	col := newCollector(table, env)

	eng.Run(ctx, scopes, func(res entity.ScopeResult) {
		if dup := col.add(res); dup {
			zerolog.Ctx(ctx).Warn().
				Str("scope", res.Scope.ID).
				Str("display_name", res.Scope.DisplayName).
				Msg("scope unit already estimated through another profile, result ignored")
		}
		progress.Increment()
	})
	progress.Stop()

	return col.report(uc.now()), nil
}

// RunEstimate executa a estimativa completa: processamento, tabela e exportação.
func (uc *EstimateUseCase) RunEstimate(ctx context.Context, cfg types.RunConfig) error {
	report, err := uc.Estimate(ctx, cfg)
	if err != nil {
		return err
	}

	uc.console.Print(uc.summaryTable(report).Render())

	failed := 0
	for _, res := range report.Scopes {
		if !res.Success {
			failed++
			uc.console.LogWarning("Scope unit %s skipped: %s", res.Scope.Label(), res.Error)
		}
	}
	if failed == len(report.Scopes) {
		uc.console.LogWarning("No scope unit could be estimated")
	}

	return uc.export(report, cfg)
}

func (uc *EstimateUseCase) export(report entity.Report, cfg types.RunConfig) error {
	var errs []error
	for _, reportType := range cfg.ReportTypes {
		switch reportType {
		case "csv":
			csvPath, err := uc.exportRepo.ExportToCSV(report.LineItems, cfg.ReportName, cfg.Dir)
			if err != nil {
				uc.console.LogError("Failed to export to CSV: %s", err)
				errs = append(errs, err)
			} else {
				uc.console.LogSuccess("Successfully exported to CSV: %s", csvPath)
			}
		case "json":
			jsonPath, err := uc.exportRepo.ExportToJSON(report, cfg.ReportName, cfg.Dir)
			if err != nil {
				uc.console.LogError("Failed to export to JSON: %s", err)
				errs = append(errs, err)
			} else {
				uc.console.LogSuccess("Successfully exported to JSON: %s", jsonPath)
			}
		case "pdf":
			pdfPath, err := uc.exportRepo.ExportToPDF(report, cfg.ReportName, cfg.Dir)
			if err != nil {
				uc.console.LogError("Failed to export to PDF: %s", err)
				errs = append(errs, err)
			} else {
				uc.console.LogSuccess("Successfully exported to PDF: %s", pdfPath)
			}
		default:
			uc.console.LogWarning("Unknown report type %q ignored", reportType)
		}
	}
	return errors.Join(errs...)
}

// summaryTable monta a tabela final, uma linha por unidade de escopo.
func (uc *EstimateUseCase) summaryTable(report entity.Report) types.TableInterface {
	table := uc.console.CreateTable()
	table.AddColumn("Scope")
	table.AddColumn("Status")
	table.AddColumn("Resources")
	table.AddColumn("Cores")
	table.AddColumn("Degraded")
	table.AddColumn("Elapsed")

	for _, res := range report.Scopes {
		scopeText := pterm.FgMagenta.Sprintf("%s", res.Scope.Label())
		if !res.Success {
			table.AddRow(
				scopeText,
				pterm.FgRed.Sprint("Skipped"),
				pterm.FgRed.Sprintf("%s", res.Error),
				pterm.FgRed.Sprint("N/A"),
				pterm.FgRed.Sprint("N/A"),
				res.Elapsed.Round(time.Millisecond).String(),
			)
			continue
		}

		var lines []string
		for _, c := range res.Counts.Categories() {
			lines = append(lines, fmt.Sprintf("%s: %d", c, res.Counts.Get(c)))
		}
		degraded := pterm.FgGreen.Sprint("None")
		if len(res.Degraded) > 0 {
			degraded = pterm.FgYellow.Sprintf("%s", strings.Join(res.Degraded, "\n"))
		}

		table.AddRow(
			scopeText,
			pterm.FgGreen.Sprint("OK"),
			strings.Join(lines, "\n"),
			pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprintf("%s", res.CoreEstimate.StringFixed(2)),
			degraded,
			res.Elapsed.Round(time.Millisecond).String(),
		)
	}
	return table
}

// collector gathers results from the scope workers.
type collector struct {
	mu      sync.Mutex
	table   plan.Table
	env     entity.EnvironmentType
	results []entity.ScopeResult
	items   map[string][]entity.PlanLineItem
}

func newCollector(table plan.Table, env entity.EnvironmentType) *collector {
	return &collector{
		table: table,
		env:   env,
		items: make(map[string][]entity.PlanLineItem),
	}
}

// add records a result and, for successful ones, its line items. It returns
// true when the scope id was already recorded; the later result is dropped.
func (c *collector) add(res entity.ScopeResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res.Success {
		if _, ok := c.items[res.Scope.ID]; ok {
			return true
		}
		c.items[res.Scope.ID] = c.table.Map(res.Scope.ID, c.env, res.Counts, res.CoreEstimate)
	}
	c.results = append(c.results, res)
	return false
}

// report orders everything by scope id so completion order never shows.
func (c *collector) report(at time.Time) entity.Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]entity.ScopeResult, len(c.results))
	copy(results, c.results)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Scope.ID < results[j].Scope.ID })

	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var items []entity.PlanLineItem
	for _, id := range ids {
		items = append(items, c.items[id]...)
	}

	return entity.Report{
		EnvironmentType: c.env,
		GeneratedAt:     at,
		Scopes:          results,
		LineItems:       items,
	}
}
