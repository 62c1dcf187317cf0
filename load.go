package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"labmap/pkg/api"
	"labmap/pkg/config"
	"labmap/pkg/dashboard"
	"labmap/pkg/facets"
	"labmap/pkg/filter"
	"labmap/pkg/labs"
	"labmap/pkg/logger"
	"labmap/pkg/mapview"
	"labmap/pkg/metrics"
)

// dashboardConfig turns the configured layout names into the dashboard's
// strategy and rules. The cluster cache is shared by every session.
func dashboardConfig(cfg *config.Config) (dashboard.Config, error) {
	strategy, err := facets.Parse(cfg.Dashboard.Facet)
	if err != nil {
		return dashboard.Config{}, err
	}
	card, err := facets.ParseCardinality(cfg.Dashboard.Cardinality)
	if err != nil {
		return dashboard.Config{}, err
	}
	empty, err := filter.ParseEmptyPolicy(cfg.Dashboard.EmptySelection)
	if err != nil {
		return dashboard.Config{}, err
	}
	lang, err := language.Parse(cfg.Dashboard.Locale)
	if err != nil {
		lang = language.English
	}
	clusters, err := mapview.NewClusterCache(cfg.Map.ClusterCache)
	if err != nil {
		return dashboard.Config{}, err
	}
	clusters.OnBuild = metrics.ClusterBuilt

	return dashboard.Config{
		Strategy:  strategy,
		Rules:     filter.Rules{Cardinality: card, Empty: empty},
		FacetNoun: cfg.Dashboard.FacetNoun,
		MaxItems:  cfg.Dashboard.ResultLimit,
		Language:  lang,
		Map: mapview.Options{
			MaxZoom: cfg.Map.ClusterMaxZoom,
			Radius:  cfg.Map.ClusterRadius,
			Cache:   clusters,
		},
	}, nil
}

// unplottedShown caps the ids listed in the not-plotted summary line.
const unplottedShown = 20

// loadDataset fetches and normalizes the lab list once. Skipped rows are
// buffered and replayed in full only when the load fails or debug is on;
// a successful load still names the records it could not plot. Failure
// is terminal: the page shows the error panel until reloaded after a
// restart.
func loadDataset(ctx context.Context, cfg *config.Config, dc dashboard.Config, loaded *api.Readiness, logf, errorf func(string, ...any), verbose bool) {
	const loadID = "labs"
	buf := logger.NewBuffer(
		func(line string) { logf("%s", line) },
		func(line string) { errorf("%s", line) },
		verbose,
	)
	defer buf.Close()

	start := time.Now()
	metrics.LoadState.Set(0)
	buf.Begin(loadID)
	buf.Appendf(loadID, "[%s] loading %s", loadID, cfg.DataSourceURL)

	raw, err := labs.Load(ctx, cfg.DataSourceURL, labs.LoadOptions{})
	if err != nil {
		buf.FlushError(loadID, err)
		metrics.LoadState.Set(-1)
		loaded.Fail(err)
		return
	}

	ds := labs.Normalize(raw, labs.Options{
		NotAvailable: cfg.Dashboard.NotAvailable,
		OnSkip: func(row int, id string, err error) {
			buf.Appendf(loadID, "[%s] row %d (%q) not plotted: %v", loadID, row, id, err)
		},
	})
	metrics.Records.WithLabelValues("total").Set(float64(ds.Total()))
	metrics.Records.WithLabelValues("plotted").Set(float64(ds.Plotted()))

	d := dashboard.Bootstrap(ds, dc)
	buf.Success(loadID, fmt.Sprintf("✔ %d records, %d plotted, %d facet values (%s) in %s",
		ds.Total(), ds.Plotted(), len(d.Facets()), dc.Strategy.Name(), time.Since(start).Round(time.Millisecond)))

	if ids, n := ds.Unplotted(unplottedShown); n > 0 {
		more := ""
		if n > len(ids) {
			more = fmt.Sprintf(" and %d more", n-len(ids))
		}
		buf.Append(loadID, fmt.Sprintf("[%s] %d records not plotted (no usable coordinates): %s%s",
			loadID, n, strings.Join(ids, ", "), more))
	}

	metrics.LoadState.Set(1)
	loaded.Ready(d)
}
