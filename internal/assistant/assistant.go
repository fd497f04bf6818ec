// Package assistant answers questions about repair data through a remote
// completion API. Only the rendered statistics summary is ever sent; raw
// records stay in the process.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"repair-dashboard/internal/config"
	"repair-dashboard/internal/models"
	"repair-dashboard/internal/observability"
)

const (
	// NotConfiguredMessage is returned instead of calling the API when no key is set.
	NotConfiguredMessage = "API key is not configured. Add OPENAI_API_KEY to .env.local."

	noDataPrompt = "You are the repair analytics assistant. No data has been imported yet."

	// rawTokensPerRecord is the rough prompt size of one record sent verbatim.
	rawTokensPerRecord = 300
)

const systemPromptFormat = `You are an assistant that analyzes vehicle repair data.

AGGREGATED DATA (%s records):

%s

TASKS:
- Answer questions from the aggregated statistics above
- Analyze costs and trends, compare metrics
- Point out insights and ways to reduce cost
- Keep answers short
- Write large amounts as "million" or "billion"

NOTES:
- The data is pre-aggregated, so the statistics above are complete
- If a question needs detail the summary does not contain, say so
- Round numbers so they are easy to read`

// Summarizer renders the statistics of a record set as prompt text.
type Summarizer interface {
	Summarize(records []models.RepairRecord) string
}

type Option func(*Assistant)

func WithCompleter(c Completer) Option {
	return func(a *Assistant) {
		a.client = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) {
		a.logger = l
	}
}

// WithLimiter shares a request limiter between conversations.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *Assistant) {
		a.limiter = l
	}
}

// Assistant is one conversation. Calls are serialized: the lock is held
// across the remote round trip so replies land in history in call order.
type Assistant struct {
	mu         sync.Mutex
	cfg        config.AssistantConfig
	client     Completer
	summarizer Summarizer
	history    History
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func New(cfg config.AssistantConfig, summarizer Summarizer, opts ...Option) *Assistant {
	a := &Assistant{
		cfg:        cfg,
		summarizer: summarizer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = NewOpenAIClient(cfg)
	}
	return a
}

// IsConfigured reports whether an API key is set. It does not contact the API.
func (a *Assistant) IsConfigured() bool {
	return a.cfg.APIKey != ""
}

// SendMessage appends text to the conversation, sends it and returns the
// reply. Failures come back as a user-facing "Error: ..." string; nothing is
// retried. The first call builds the system prompt from records.
func (a *Assistant) SendMessage(ctx context.Context, text string, records []models.RepairRecord) string {
	if !a.IsConfigured() {
		observability.ChatRequestsTotal.WithLabelValues("unconfigured").Inc()
		return NotConfiguredMessage
	}

	ctx, span := observability.StartSpan(ctx, "assistant.send_message")
	defer span.Finish()

	if a.limiter != nil && !a.limiter.Allow() {
		observability.ChatRequestsTotal.WithLabelValues("rate_limited").Inc()
		return "Error: too many questions at once, please wait a moment"
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.history.Empty() {
		a.history.Push(Message{Role: RoleSystem, Content: a.systemPrompt(records)})
	}
	a.history.Push(Message{Role: RoleUser, Content: text})

	start := time.Now()
	reply, err := a.client.Complete(ctx, CompletionRequest{
		Model:       a.cfg.Model,
		Messages:    a.history.Messages(),
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	observability.ChatRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.SetError(err)
		observability.ChatRequestsTotal.WithLabelValues("error").Inc()
		a.logger.Error("completion request failed",
			"error", err,
			"request_id", observability.GetRequestID(ctx),
			"history", a.history.Len(),
		)
		return "Error: " + err.Error()
	}

	a.history.Push(Message{Role: RoleAssistant, Content: reply})
	a.history.Trim()

	observability.ChatRequestsTotal.WithLabelValues("ok").Inc()
	a.logger.Info("completion received",
		"request_id", observability.GetRequestID(ctx),
		"history", a.history.Len(),
		"duration", time.Since(start),
	)
	return reply
}

func (a *Assistant) systemPrompt(records []models.RepairRecord) string {
	if len(records) == 0 {
		return noDataPrompt
	}
	return fmt.Sprintf(systemPromptFormat, strconv.Itoa(len(records)), a.summarizer.Summarize(records))
}

// History returns a copy of the conversation so far.
func (a *Assistant) History() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Messages()
}

// Reset forgets the conversation; the next message rebuilds the system prompt.
func (a *Assistant) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Reset()
}

// TokenEstimate compares the prompt cost of the summary with sending every
// record verbatim. One token is taken as four characters.
type TokenEstimate struct {
	SummaryTokens  int     `json:"summary_tokens"`
	RawTokens      int     `json:"raw_tokens"`
	SavingsPercent float64 `json:"savings_percent"`
}

func (a *Assistant) EstimateTokens(records []models.RepairRecord) TokenEstimate {
	return EstimateTokens(a.summarizer.Summarize(records), len(records))
}

func EstimateTokens(summary string, recordCount int) TokenEstimate {
	est := TokenEstimate{
		SummaryTokens: int(math.Ceil(float64(len(summary)) / 4)),
		RawTokens:     recordCount * rawTokensPerRecord,
	}
	if est.RawTokens > 0 {
		est.SavingsPercent = float64(est.RawTokens-est.SummaryTokens) / float64(est.RawTokens) * 100
	}
	return est
}
