package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/answer"
	"github.com/MikeSquared-Agency/cue/internal/transcription"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// maxCodeChars keeps threaded code replies under Slack's message limit.
const maxCodeChars = 3500

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string

	wg sync.WaitGroup
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostAnswer posts the question and explanation, then the code (if any) as a
// threaded reply. Returns the timestamp of the top-level message.
func (p *Poster) PostAnswer(ctx context.Context, sessionID string, res answer.Result) (string, error) {
	text := formatAnswerMessage(sessionID, res)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("category: %s | latency: %dms", res.Analysis.Category, res.Latency.Milliseconds()),
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	if res.Code != "" {
		if err := p.PostThread(ctx, ts, formatCode(res.Code)); err != nil {
			p.logger.Warn("failed to post code to slack thread", "ts", ts, "error", err)
		}
	}

	p.logger.Info("posted answer to slack", "ts", ts, "token", res.Token)
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

// OnAnswer mirrors successful answers in the background.
func (p *Poster) OnAnswer(sessionID string, res answer.Result) {
	if res.Failed() {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if _, err := p.PostAnswer(ctx, sessionID, res); err != nil {
			p.logger.Warn("failed to mirror answer to slack", "token", res.Token, "error", err)
		}
	}()
}

func (p *Poster) OnTranscript(string, transcription.Event) {}

func (p *Poster) OnAnalysis(string, analyzer.Analysis) {}

// Wait blocks until in-flight mirrors finish.
func (p *Poster) Wait() {
	p.wg.Wait()
}

func formatAnswerMessage(sessionID string, res answer.Result) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Q:* %s\n", res.Question)
	if len(res.Analysis.Keywords) > 0 {
		fmt.Fprintf(&sb, "*Keywords:* %s\n", strings.Join(res.Analysis.Keywords, ", "))
	}
	sb.WriteString("\n")
	sb.WriteString(res.Explanation)
	if res.Code != "" {
		sb.WriteString("\n\n_Code in thread._")
	}
	fmt.Fprintf(&sb, "\n\n_session %s_", shortID(sessionID))

	return sb.String()
}

func formatCode(code string) string {
	if len(code) > maxCodeChars {
		code = code[:maxCodeChars] + "\n// ..."
	}
	return "```\n" + code + "\n```"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
