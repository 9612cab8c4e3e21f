package notify

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

// discordUsername is the sender name shown in the Discord channel.
const discordUsername = "Quant Bot Pro"

// DiscordNotifier posts alerts to a Discord webhook endpoint.
type DiscordNotifier struct {
	url    string
	client *http.Client
}

// NewDiscordNotifier creates a Discord webhook notifier.
// url: the webhook endpoint to POST alerts to.
func NewDiscordNotifier(url string) *DiscordNotifier {
	return &DiscordNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Send(ctx context.Context, a Alert) error {
	payload := map[string]interface{}{
		"content":  a.Message(),
		"username": discordUsername,
	}

	body, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord: unexpected status %d", resp.StatusCode)
	}

	log.Printf("[discord] sent %s alert", a.Side)
	return nil
}
