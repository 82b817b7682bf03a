package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed   = 16711680
	colorGreen = 65280
)

// Discord posts run outcomes to webhooks. An empty webhook URL disables that
// kind of notification.
type Discord struct {
	ErrorURL   string
	SuccessURL string

	rest *resty.Client
}

func NewDiscord(errorURL, successURL string) *Discord {
	return &Discord{
		ErrorURL:   errorURL,
		SuccessURL: successURL,
		rest:       resty.New().SetTimeout(10 * time.Second),
	}
}

func (d *Discord) SendErrorNotification(ctx context.Context, errorMessage string) error {
	if d == nil {
		return nil
	}
	return d.send(ctx, d.ErrorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: fmt.Sprintf("So weird… must be your problem.\n\nAn error occurred: %s", errorMessage),
		Color:       colorRed,
	})
}

func (d *Discord) SendSuccessNotification(ctx context.Context, successMessage string) error {
	if d == nil {
		return nil
	}
	return d.send(ctx, d.SuccessURL, DiscordEmbed{
		Title:       "✅ Success Notification",
		Description: fmt.Sprintf("Not sure how, but it worked...\n\n%s", successMessage),
		Color:       colorGreen,
	})
}

func (d *Discord) send(ctx context.Context, url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}

	resp, err := d.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(DiscordMessage{Embeds: []DiscordEmbed{embed}}).
		Post(url)
	if err != nil {
		return fmt.Errorf("failed to send Discord notification: %w", err)
	}
	if resp.StatusCode() != http.StatusNoContent && resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode())
	}
	return nil
}
