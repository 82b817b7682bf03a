package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/fire-index-timeseries/internal/dataset"
	"github.com/forest-guardian/fire-index-timeseries/internal/sentinel"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartOptions configures the index time series chart.
type ChartOptions struct {
	Title      string
	EventDate  time.Time
	EventLabel string
	// Colors maps a band to its line color; bands without one use the echarts palette.
	Colors map[string]string
}

func DefaultChartOptions(eventDate time.Time, eventLabel string) ChartOptions {
	return ChartOptions{
		Title:      "NDVI, NBR, NDWI and EVI TimeSeries",
		EventDate:  eventDate,
		EventLabel: eventLabel,
		Colors: map[string]string{
			sentinel.IndexNDVI: "green",
			sentinel.IndexNBR:  "red",
			sentinel.IndexNDWI: "blue",
			sentinel.IndexEVI:  "orange",
		},
	}
}

const (
	lineWidth  = 2
	symbolSize = 8
)

// CreateIndexChart draws one line per series band on a shared date axis, with a
// vertical mark at the event date. Missing values leave gaps.
func CreateIndexChart(series dataset.Series, options ChartOptions) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: options.Title,
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: options.Title,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    true,
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show:   true,
			Orient: "horizontal",
			Top:    "5%",
			Right:  "1%",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "Date",
			Type:      "time",
			SplitLine: &opts.SplitLine{Show: true},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "Index Value",
			Type:      "value",
			SplitLine: &opts.SplitLine{Show: true},
		}),
	)
	line.SetXAxis(series.Dates)

	event := options.EventDate.Format(dataset.DateLayout)
	for i, band := range series.Bands {
		seriesOpts := []charts.SeriesOpts{
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: true}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: options.Colors[band], Width: lineWidth}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: options.Colors[band]}),
		}
		// A single mark line is enough, the first series carries it.
		if i == 0 && options.EventLabel != "" && !options.EventDate.IsZero() {
			seriesOpts = append(seriesOpts,
				charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{
					Name:  options.EventLabel,
					XAxis: event,
				}),
				charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
					Symbol: []string{"none", "none"},
					Label: &opts.Label{
						Show:      true,
						Formatter: options.EventLabel,
					},
				}),
			)
		}
		line.AddSeries(band, lineData(series.Dates, series.Band(band)), seriesOpts...)
	}
	return line
}

func lineData(dates []string, values []*float64) []opts.LineData {
	data := make([]opts.LineData, len(dates))
	for i, date := range dates {
		var value interface{}
		if i < len(values) && values[i] != nil {
			value = *values[i]
		}
		data[i] = opts.LineData{Value: []interface{}{date, value}, SymbolSize: symbolSize}
	}
	return data
}

// SaveIndexChart renders the chart as a standalone HTML document at path,
// creating the directory and replacing any previous file.
func SaveIndexChart(chart *charts.Line, path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create chart file: %w", err)
	}

	if err := renderChart(chart, file); err != nil {
		return "", err
	}
	return path, nil
}

// renderChart writes the chart and closes w, reporting the first failure of either.
func renderChart(chart *charts.Line, w io.WriteCloser) error {
	if err := chart.Render(w); err != nil {
		w.Close()
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close chart file: %w", err)
	}
	return nil
}
