package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/fire-index-timeseries/internal/delivery"
	"github.com/forest-guardian/fire-index-timeseries/internal/properties"
	"github.com/sirupsen/logrus"
)

func printBanner() {
	figure1 := figure.NewFigure("Fire", "isometric1", true)
	figure2 := figure.NewFigure("Index", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func mustDate(value string) time.Time {
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return date
}

// Palisades fire area, Pacific Palisades, Los Angeles.
var scenario = delivery.Scenario{
	Start:          mustDate("2024-11-01"),
	End:            mustDate("2025-04-01"),
	Latitude:       34.092615,
	Longitude:      -118.532875,
	RadiusMeters:   1000,
	CloudThreshold: 40,
	EventDate:      mustDate("2025-01-07"),
	EventLabel:     "First Fire detected",
	OutputFile:     "ndvi_nbr_plot.html",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := properties.Load(ctx)
	if err != nil {
		bannercolor.Red("Error loading configuration: %s", err.Error())
		os.Exit(1)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Warn("invalid LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	printBanner()

	if _, err := delivery.RunIndexTimeSeries(ctx, cfg, scenario); err != nil {
		logrus.WithError(err).Error("run failed")
		bannercolor.Red("Error creating index time series: %s", err.Error())
		stop()
		os.Exit(1)
	}
}
