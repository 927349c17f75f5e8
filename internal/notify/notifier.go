package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Message struct {
	Channel  string   `json:"channel"`
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
	SentOn   string   `json:"sent_on"`
}

// Notifier posts messages to a webhook. It is a fire-and-forget sink:
// delivery failures are logged, never escalated to the caller.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Notify(ctx context.Context, channel, text string, severity Severity) {
	if n.webhookURL == "" {
		log.Printf("notify [%s] %s: %s\n", severity, channel, text)
		return
	}

	body, err := json.Marshal(Message{
		Channel:  channel,
		Text:     text,
		Severity: severity,
		SentOn:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Println("err marshaling notification:", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Println("err creating notification request:", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Println("err sending notification:", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Printf("notification webhook returned %d\n", resp.StatusCode)
	}
}
