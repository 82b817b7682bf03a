package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/forest-guardian/fire-index-timeseries/internal/utils"
)

const (
	DefaultCollection = "sentinel-2-l2a"
	catalogPageLimit  = 100
)

// Query selects acquisitions intersecting Region in [Start, End) whose scene cloud
// cover is below MaxCloudCover percent.
type Query struct {
	Collection    string
	Start         time.Time
	End           time.Time
	Region        Region
	MaxCloudCover float64
}

func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if !q.End.After(q.Start) {
		return fmt.Errorf("end date %s must be after start date %s", q.End.Format("2006-01-02"), q.Start.Format("2006-01-02"))
	}
	if q.MaxCloudCover < 0 || q.MaxCloudCover > 100 {
		return fmt.Errorf("cloud threshold %.1f outside [0, 100]", q.MaxCloudCover)
	}
	return nil
}

// Scene is one acquisition day of a collection.
type Scene struct {
	Collection    string
	Date          time.Time
	MaxCloudCover float64
}

type catalogSearchResponse struct {
	Features json.RawMessage `json:"features"`
	Context  struct {
		Next     *int `json:"next"`
		Returned int  `json:"returned"`
	} `json:"context"`
}

// Search lists distinct acquisition dates matching the query in ascending order.
func (c *Client) Search(ctx context.Context, query Query) ([]Scene, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	geometry, err := query.Region.GeoJSON()
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"collections": []string{query.Collection},
		"datetime": fmt.Sprintf("%s/%s",
			query.Start.UTC().Format(time.RFC3339),
			query.End.UTC().Add(-time.Second).Format(time.RFC3339)),
		"intersects":  geometry,
		"limit":       catalogPageLimit,
		"distinct":    "date",
		"filter":      fmt.Sprintf("eo:cloud_cover < %g", query.MaxCloudCover),
		"filter-lang": "cql2-text",
	}

	var acquired []time.Time
	for {
		req, err := c.request(ctx)
		if err != nil {
			return nil, err
		}

		var page catalogSearchResponse
		resp, err := req.SetBody(payload).SetResult(&page).Post(catalogSearchPath)
		if err := checkResponse("catalog search", resp, err); err != nil {
			return nil, err
		}

		dates, err := parseDistinctDates(page.Features)
		if err != nil {
			return nil, &RemoteServiceError{Op: "catalog search", StatusCode: resp.StatusCode(), Err: err}
		}
		acquired = append(acquired, dates...)

		if page.Context.Next == nil || len(dates) == 0 {
			break
		}
		payload["next"] = *page.Context.Next
	}

	scenes := make([]Scene, 0, len(acquired))
	for _, date := range utils.SortDates(acquired, true) {
		scenes = append(scenes, Scene{
			Collection:    query.Collection,
			Date:          date,
			MaxCloudCover: query.MaxCloudCover,
		})
	}
	c.log.WithField("scenes", len(scenes)).Info("catalog search complete")
	return scenes, nil
}

func parseDistinctDates(raw json.RawMessage) ([]time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("unexpected catalog features: %w", err)
	}
	dates := make([]time.Time, 0, len(values))
	for _, value := range values {
		date, err := time.Parse("2006-01-02", value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse acquisition date %q: %w", value, err)
		}
		dates = append(dates, date)
	}
	return dates, nil
}
