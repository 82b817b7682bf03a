package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forest-guardian/fire-index-timeseries/internal/sentinel"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DateLayout formats observation dates.
const DateLayout = "2006-01-02"

var log = logrus.WithField("component", "dataset")

// Source is an imagery provider: a catalog search plus a per-acquisition fetch.
type Source interface {
	Search(ctx context.Context, query sentinel.Query) ([]sentinel.Scene, error)
	Fetch(ctx context.Context, scene sentinel.Scene, region sentinel.Region, resolution float64) (*sentinel.BandImage, error)
}

// MissingBandPolicy decides what happens to an image lacking a required band.
type MissingBandPolicy int

const (
	// SkipMissingBands logs and drops the image; the series continues.
	SkipMissingBands MissingBandPolicy = iota
	// AbortOnMissingBand fails the materialization.
	AbortOnMissingBand
)

// Collection accumulates filters and transforms without touching the source.
// Every builder method returns a new Collection; nothing runs until Materialize.
type Collection struct {
	source      Source
	query       sentinel.Query
	hasBounds   bool
	transforms  []sentinel.Transform
	selected    []string
	resolution  float64
	policy      MissingBandPolicy
	concurrency int
	progress    bool
}

func NewCollection(source Source, collectionID string) *Collection {
	return &Collection{
		source:      source,
		query:       sentinel.Query{Collection: collectionID, MaxCloudCover: 100},
		resolution:  10,
		concurrency: 1,
	}
}

func (c *Collection) clone() *Collection {
	out := *c
	out.transforms = append([]sentinel.Transform{}, c.transforms...)
	out.selected = append([]string{}, c.selected...)
	return &out
}

// FilterDate keeps acquisitions in [start, end).
func (c *Collection) FilterDate(start, end time.Time) *Collection {
	out := c.clone()
	out.query.Start = start
	out.query.End = end
	return out
}

func (c *Collection) FilterBounds(region sentinel.Region) *Collection {
	out := c.clone()
	out.query.Region = region
	out.hasBounds = true
	return out
}

// FilterCloudCover keeps scenes whose cloud cover is strictly below maxPercent.
func (c *Collection) FilterCloudCover(maxPercent float64) *Collection {
	out := c.clone()
	out.query.MaxCloudCover = maxPercent
	return out
}

func (c *Collection) Map(transforms ...sentinel.Transform) *Collection {
	out := c.clone()
	out.transforms = append(out.transforms, transforms...)
	return out
}

// Select names the bands reduced into each observation.
func (c *Collection) Select(bands ...string) *Collection {
	out := c.clone()
	out.selected = append([]string{}, bands...)
	return out
}

// Scale sets the sampling resolution in meters.
func (c *Collection) Scale(meters float64) *Collection {
	out := c.clone()
	out.resolution = meters
	return out
}

func (c *Collection) OnMissingBand(policy MissingBandPolicy) *Collection {
	out := c.clone()
	out.policy = policy
	return out
}

// Concurrency bounds the number of acquisitions fetched at once.
func (c *Collection) Concurrency(n int) *Collection {
	out := c.clone()
	if n < 1 {
		n = 1
	}
	out.concurrency = n
	return out
}

func (c *Collection) ShowProgress(show bool) *Collection {
	out := c.clone()
	out.progress = show
	return out
}

func (c *Collection) validate() error {
	if c.source == nil {
		return errors.New("collection has no imagery source")
	}
	if !c.hasBounds {
		return errors.New("collection has no region, call FilterBounds")
	}
	if len(c.selected) == 0 {
		return errors.New("collection selects no bands, call Select")
	}
	if c.resolution <= 0 {
		return fmt.Errorf("invalid sampling resolution %f", c.resolution)
	}
	return c.query.Validate()
}

// Materialize runs the search once, then fetches, transforms and reduces every
// acquisition. Observations keep the search order whatever the fetch scheduling.
func (c *Collection) Materialize(ctx context.Context) (*Materialized, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	entry := log.WithFields(logrus.Fields{
		"collection": c.query.Collection,
		"start":      c.query.Start.Format(DateLayout),
		"end":        c.query.End.Format(DateLayout),
		"region":     c.query.Region.String(),
		"max_cloud":  c.query.MaxCloudCover,
	})

	scenes, err := c.source.Search(ctx, c.query)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", c.query.Collection, err)
	}

	result := &Materialized{bands: append([]string{}, c.selected...)}
	if len(scenes) == 0 {
		entry.WithError(ErrEmptyResult).Warn("empty collection, the series will be empty")
		return result, nil
	}
	entry.WithField("scenes", len(scenes)).Info("materializing collection")

	var bar *progressbar.ProgressBar
	if c.progress {
		bar = progressbar.Default(int64(len(scenes)), "Reducing images")
	} else {
		bar = progressbar.DefaultSilent(int64(len(scenes)), "Reducing images")
	}

	observations := make([]*Observation, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, scene := range scenes {
		g.Go(func() error {
			defer bar.Add(1)

			observation, err := c.reduceScene(gctx, scene)
			var missing *sentinel.MissingBandError
			if errors.As(err, &missing) && c.policy == SkipMissingBands {
				log.WithError(err).WithField("band", missing.Band).Warn("skipping image")
				result.addSkipped(scene, err)
				return nil
			}
			if err != nil {
				return err
			}
			observations[i] = observation
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	bar.Finish()

	for _, observation := range observations {
		if observation != nil {
			result.observations = append(result.observations, *observation)
		}
	}
	entry.WithFields(logrus.Fields{
		"observations": len(result.observations),
		"skipped":      len(result.skipped),
	}).Info("collection materialized")
	return result, nil
}

func (c *Collection) reduceScene(ctx context.Context, scene sentinel.Scene) (*Observation, error) {
	img, err := c.source.Fetch(ctx, scene, c.query.Region, c.resolution)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", scene.Date.Format(DateLayout), err)
	}

	img, err = sentinel.Chain(img, c.transforms...)
	if err != nil {
		return nil, err
	}
	img, err = img.Select(c.selected...)
	if err != nil {
		return nil, err
	}

	stats, err := ReduceMean(img, c.selected...)
	if err != nil {
		return nil, err
	}
	return &Observation{Date: scene.Date.Format(DateLayout), Values: stats}, nil
}
