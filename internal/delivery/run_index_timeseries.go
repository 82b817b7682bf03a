package delivery

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/forest-guardian/fire-index-timeseries/internal/dataset"
	"github.com/forest-guardian/fire-index-timeseries/internal/notification"
	"github.com/forest-guardian/fire-index-timeseries/internal/properties"
	"github.com/forest-guardian/fire-index-timeseries/internal/sentinel"
	"github.com/forest-guardian/fire-index-timeseries/internal/snapshot"
	"github.com/forest-guardian/fire-index-timeseries/output"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "delivery")

// Scenario is one area, period and event to chart.
type Scenario struct {
	Start          time.Time
	End            time.Time
	Latitude       float64
	Longitude      float64
	RadiusMeters   float64
	CloudThreshold float64
	EventDate      time.Time
	EventLabel     string
	OutputFile     string
}

// Result is the outcome of a successful run.
type Result struct {
	Path   string
	Series dataset.Series
}

// RunIndexTimeSeries builds the regional index series of the scenario and saves
// the chart under the results directory.
func RunIndexTimeSeries(ctx context.Context, cfg *properties.Config, scenario Scenario) (*Result, error) {
	discord := notification.NewDiscord(cfg.DiscordErrorNotificationURL, cfg.DiscordSuccessNotificationURL)

	result, err := runIndexTimeSeries(ctx, cfg, scenario)
	if err != nil {
		if notifyErr := discord.SendErrorNotification(ctx, fmt.Sprintf("Fire index time series\n\n%s", err.Error())); notifyErr != nil {
			log.WithError(notifyErr).Warn("failed to send error notification")
		}
		return nil, err
	}

	color.Green("Graphic saved at '%s'", result.Path)
	if notifyErr := discord.SendSuccessNotification(ctx, fmt.Sprintf("Fire index time series\n\nGraphic saved at '%s'", result.Path)); notifyErr != nil {
		log.WithError(notifyErr).Warn("failed to send success notification")
	}
	return result, nil
}

func runIndexTimeSeries(ctx context.Context, cfg *properties.Config, scenario Scenario) (*Result, error) {
	region, err := sentinel.NewRegion(scenario.Latitude, scenario.Longitude, scenario.RadiusMeters)
	if err != nil {
		return nil, err
	}

	source, err := openSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	params := dataset.DefaultParams(scenario.Start, scenario.End, region)
	params.CloudThreshold = scenario.CloudThreshold
	params.Concurrency = cfg.FetchConcurrency
	params.ShowProgress = logrus.IsLevelEnabled(logrus.InfoLevel)

	log.WithFields(logrus.Fields{
		"start":  scenario.Start.Format(dataset.DateLayout),
		"end":    scenario.End.Format(dataset.DateLayout),
		"region": region.String(),
	}).Info("building index time series")

	series, err := dataset.BuildSeries(ctx, source, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build time series: %w", err)
	}

	chart := output.CreateIndexChart(series, output.DefaultChartOptions(scenario.EventDate, scenario.EventLabel))
	path, err := output.SaveIndexChart(chart, cfg.ResultsPath(scenario.OutputFile))
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"path": path, "dates": series.Len()}).Info("chart saved")
	return &Result{Path: path, Series: series}, nil
}

// openSource prefers the configured snapshot, otherwise it authenticates against
// Sentinel Hub before any query is made.
func openSource(ctx context.Context, cfg *properties.Config) (dataset.Source, error) {
	if cfg.ImagerySnapshot != "" {
		path := cfg.ImagerySnapshot
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.RootPath, path)
		}
		log.WithField("path", path).Info("reading imagery snapshot")
		return snapshot.Open(path)
	}

	client, err := sentinel.NewClient(sentinel.ClientConfig{
		BaseURL:       cfg.SentinelHubURL,
		TokenURL:      cfg.CopernicusTokenURL,
		ClientIDs:     cfg.CopernicusClientIDs,
		ClientSecrets: cfg.CopernicusClientSecrets,
		Retries:       cfg.SentinelRetries,
		RetryWait:     cfg.SentinelRetryWait,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Authenticate(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
