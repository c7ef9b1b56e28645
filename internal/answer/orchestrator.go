// Package answer turns admitted question analyses into generated answers,
// keeping at most one generation request active at a time.
package answer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/conversation"
	"github.com/MikeSquared-Agency/cue/internal/metrics"
)

const (
	placeholderAnswer = "Sorry, I couldn't generate a response for this question."
	placeholderCode   = "Sorry, I couldn't generate code for this question."
)

// Generator is an answer-generation backend.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Result is one generated answer. On failure Err is set and Explanation holds
// an apologetic placeholder.
type Result struct {
	Token       uint64            `json:"token"`
	Question    string            `json:"question"`
	Analysis    analyzer.Analysis `json:"analysis"`
	Raw         string            `json:"raw"`
	Code        string            `json:"code,omitempty"`
	Explanation string            `json:"explanation"`
	Err         error             `json:"-"`
	ErrorKind   ErrorKind         `json:"error_kind,omitempty"`
	Latency     time.Duration     `json:"latency"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Failed reports whether the result is a placeholder.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Ticket identifies an admitted request.
type Ticket struct {
	Token  uint64
	Cancel context.CancelFunc
}

type Options struct {
	// Timeout bounds each generation call; zero means no extra bound.
	Timeout time.Duration
	// ResultBuffer sizes the Results channel.
	ResultBuffer int
}

// Orchestrator admits technical questions, supersedes older requests and
// delivers results on a channel.
type Orchestrator struct {
	gen     Generator
	history *conversation.Context
	metrics *metrics.Metrics
	logger  *slog.Logger
	opts    Options

	next atomic.Uint64

	mu      sync.Mutex
	active  uint64
	cancel  context.CancelFunc
	stopped bool

	results chan Result
	wg      sync.WaitGroup
}

func New(gen Generator, history *conversation.Context, m *metrics.Metrics, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.ResultBuffer <= 0 {
		opts.ResultBuffer = 32
	}
	return &Orchestrator{
		gen:     gen,
		history: history,
		metrics: m,
		logger:  logger,
		opts:    opts,
		results: make(chan Result, opts.ResultBuffer),
	}
}

// Results delivers answers for requests that were still current when they
// completed. Superseded results never appear here.
func (o *Orchestrator) Results() <-chan Result {
	return o.results
}

// Handle admits a technical analysis and starts generation in the
// background, cancelling whatever request was active. Non-technical analyses
// are dropped without touching the backend, and nothing is admitted after
// Stop. ctx bounds the generation.
func (o *Orchestrator) Handle(ctx context.Context, a analyzer.Analysis) (Ticket, bool) {
	if !a.IsTechnical {
		return Ticket{}, false
	}

	reqCtx, cancel := o.requestContext(ctx)

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		cancel()
		o.logger.Debug("answer request refused after stop", "category", a.Category)
		return Ticket{}, false
	}
	token := o.next.Add(1)
	if o.cancel != nil {
		o.cancel()
	}
	o.active = token
	o.cancel = cancel
	// Added under the lock so Stop cannot start waiting before it counts.
	o.wg.Add(1)
	o.mu.Unlock()

	o.metrics.AnswerAdmitted()
	o.logger.Info("answer request admitted",
		"token", token,
		"category", a.Category,
		"coding", a.IsCodingRequest,
		"follow_up", a.IsFollowUp,
	)

	go func() {
		defer o.wg.Done()
		defer cancel()
		res := o.generate(reqCtx, token, a)
		o.deliver(res)
	}()

	return Ticket{Token: token, Cancel: cancel}, true
}

// Ask answers synchronously without taking part in supersession. Non-technical
// analyses are still answered; the caller decided to ask.
func (o *Orchestrator) Ask(ctx context.Context, a analyzer.Analysis) (Result, error) {
	reqCtx, cancel := o.requestContext(ctx)
	defer cancel()
	res := o.generate(reqCtx, o.next.Add(1), a)
	if res.Err == nil {
		o.remember(res)
	}
	return res, res.Err
}

// Active returns the token of the current request, zero if none was admitted.
func (o *Orchestrator) Active() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Wait blocks until every admitted request has completed or been discarded.
// Their results are already on the Results channel when it returns.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Stop cancels the active request, refuses further admissions and waits for
// background work to finish, then closes Results. A second Stop is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	o.active = 0
	o.mu.Unlock()
	o.wg.Wait()
	close(o.results)
}

func (o *Orchestrator) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.Timeout > 0 {
		return context.WithTimeout(ctx, o.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) generate(ctx context.Context, token uint64, a analyzer.Analysis) Result {
	start := time.Now()
	res := Result{
		Token:    token,
		Question: a.SourceText,
		Analysis: a,
	}

	var history string
	if a.IsFollowUp && o.history != nil {
		history = o.history.Format()
	}
	prompt := BuildPrompt(a, history)

	raw, err := o.gen.Generate(ctx, SystemPrompt, prompt)
	if err == nil && raw == "" {
		err = NewError(KindMalformed, errors.New("empty response"))
	}
	res.Latency = time.Since(start)
	res.CreatedAt = time.Now()

	if err != nil {
		err = Classify(err)
		res.Err = err
		res.ErrorKind = KindOf(err)
		res.Explanation = placeholderAnswer
		if a.IsCodingRequest {
			res.Explanation = placeholderCode
		}
		return res
	}

	res.Raw = raw
	res.Code, res.Explanation = ParseResponse(raw)
	return res
}

// deliver publishes res if its token is still the active one. The check and
// the send happen under the admission lock so a newer admission cannot slip
// in between; the send never blocks, a full buffer drops the result.
func (o *Orchestrator) deliver(res Result) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		o.logger.Debug("answer discarded after stop", "token", res.Token)
		return
	}
	if res.Token != o.active {
		o.metrics.AnswerSuperseded()
		o.logger.Info("answer superseded", "token", res.Token, "active", o.active)
		return
	}

	o.metrics.AnswerDone(res.Latency, res.Err)
	if res.Err != nil {
		o.logger.Warn("answer generation failed",
			"token", res.Token,
			"kind", res.ErrorKind,
			"error", res.Err,
		)
	} else {
		o.remember(res)
		o.logger.Info("answer ready",
			"token", res.Token,
			"has_code", res.Code != "",
			"latency_ms", res.Latency.Milliseconds(),
		)
	}
	select {
	case o.results <- res:
	default:
		o.metrics.AnswerDropped()
		o.logger.Warn("answer result buffer full, result dropped", "token", res.Token)
	}
}

func (o *Orchestrator) remember(res Result) {
	if o.history == nil {
		return
	}
	o.history.Append(
		conversation.Turn{Role: conversation.RoleInterviewer, Content: res.Question},
		conversation.Turn{Role: conversation.RoleAssistant, Content: contextSummary(res.Code, res.Explanation)},
	)
}
