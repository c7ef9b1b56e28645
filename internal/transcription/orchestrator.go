package transcription

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MikeSquared-Agency/cue/internal/audio"
	"github.com/MikeSquared-Agency/cue/internal/metrics"
)

const maxFinalized = 16

var errChunkDropped = errors.New("accurate transcription queue full")

// Executor runs accurate transcription jobs away from the event loop.
// TrySubmit must not block.
type Executor interface {
	TrySubmit(job func(ctx context.Context)) bool
}

type Options struct {
	// SilenceTimeout finalizes the open utterance when no partial arrives.
	SilenceTimeout time.Duration
	// BacklogSamples bounds the audio replayed into a restarted fast path.
	BacklogSamples int
	RestartMin     time.Duration
	RestartMax     time.Duration
	// AccurateTimeout bounds each accurate request.
	AccurateTimeout time.Duration
	// ChunkHop is the distance in samples between consecutive chunk starts.
	ChunkHop    int64
	FrameQueue  int
	EventBuffer int
	// Executor runs accurate requests. Nil uses a bounded set of goroutines.
	Executor Executor
	Now      func() time.Time
}

func (o *Options) defaults() {
	if o.SilenceTimeout <= 0 {
		o.SilenceTimeout = 2 * time.Second
	}
	if o.BacklogSamples <= 0 {
		o.BacklogSamples = 10 * audio.SampleRate
	}
	if o.RestartMin <= 0 {
		o.RestartMin = 250 * time.Millisecond
	}
	if o.RestartMax < o.RestartMin {
		o.RestartMax = 5 * time.Second
	}
	if o.AccurateTimeout <= 0 {
		o.AccurateTimeout = 30 * time.Second
	}
	if o.ChunkHop <= 0 {
		o.ChunkHop = audio.WindowSamples - audio.OverlapSamples
	}
	if o.FrameQueue <= 0 {
		o.FrameQueue = 256
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type frameMsg struct {
	start   int64
	samples []float32
}

func (f frameMsg) end() int64 {
	return f.start + int64(len(f.samples))
}

type accurateMsg struct {
	seq        uint64
	start, end int64
	final      bool
	text       string
	err        error
}

type utterance struct {
	id         uint64
	start, end int64
	text       string
}

// Orchestrator reconciles the fast and accurate paths into one transcript
// stream. A single goroutine (Run) owns all reconciliation state, so events
// are totally ordered.
type Orchestrator struct {
	fast     StreamRecognizer
	accurate Transcriber
	exec     Executor
	metrics  *metrics.Metrics
	logger   *slog.Logger
	opts     Options

	frames    chan frameMsg
	results   chan accurateMsg
	events    chan Event
	inputDone chan struct{}
	closeOnce sync.Once
	done      chan struct{}
	pending   atomic.Int64
	running   atomic.Bool

	droppedMu sync.Mutex
	dropped   []accurateMsg

	base       context.Context
	cancelBase context.CancelFunc

	// Owned by the event loop.
	clock        int64
	stream       Stream
	fastResults  <-chan Result
	backlog      []frameMsg
	backlogLen   int
	backoff      time.Duration
	restartTimer *time.Timer
	restartC     <-chan time.Time
	silenceTimer *time.Timer
	silenceC     <-chan time.Time
	open         bool
	cur          utterance
	lastRaw      string
	committed    string
	nextID       uint64
	lastFinalEnd int64
	finalized    []*utterance
	awaiting     []*utterance // finalized, not yet settled by the accurate path
	windows      map[uint64]accurateMsg
	accurateTail string
	accurateSeq  uint64
	accurateSeen bool
}

// New wires an orchestrator. Either path may be nil, not both: without a fast
// path the accurate texts become the finals, without an accurate path the
// fast finals stand uncorrected.
func New(fast StreamRecognizer, accurate Transcriber, m *metrics.Metrics, logger *slog.Logger, opts Options) (*Orchestrator, error) {
	if fast == nil && accurate == nil {
		return nil, errors.New("transcription needs at least one path")
	}
	opts.defaults()
	o := &Orchestrator{
		fast:      fast,
		accurate:  accurate,
		exec:      opts.Executor,
		metrics:   m,
		logger:    logger,
		opts:      opts,
		frames:    make(chan frameMsg, opts.FrameQueue),
		results:   make(chan accurateMsg, 16),
		events:    make(chan Event, opts.EventBuffer),
		inputDone: make(chan struct{}),
		done:      make(chan struct{}),
		backoff:   opts.RestartMin,
		windows:   make(map[uint64]accurateMsg),
	}
	o.base, o.cancelBase = context.WithCancel(context.Background())
	if o.exec == nil {
		o.exec = &goExecutor{ctx: o.base, sem: make(chan struct{}, 8)}
	}
	return o, nil
}

// Events is closed when Run returns.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// OnFrame taps live audio for the fast path. It never blocks; frames are
// dropped when the loop falls behind.
func (o *Orchestrator) OnFrame(start int64, frame []float32) {
	if o.fast == nil {
		return
	}
	select {
	case o.frames <- frameMsg{start: start, samples: frame}:
	default:
		o.metrics.FrameDropped()
	}
}

// OnChunk schedules accurate transcription of one window. It never blocks.
func (o *Orchestrator) OnChunk(chunk audio.Chunk) {
	o.metrics.ChunkEmitted()
	if o.accurate == nil {
		return
	}
	o.pending.Add(1)
	if !o.exec.TrySubmit(o.transcribeJob(chunk)) {
		o.pending.Add(-1)
		o.metrics.ChunkDropped()
		o.logger.Warn("accurate transcription queue full, chunk dropped", "chunk_seq", chunk.Seq)
		if o.fast != nil {
			o.droppedMu.Lock()
			o.dropped = append(o.dropped, chunkMsg(chunk, errChunkDropped))
			o.droppedMu.Unlock()
		}
	}
}

func chunkMsg(chunk audio.Chunk, err error) accurateMsg {
	return accurateMsg{seq: chunk.Seq, start: chunk.Start, end: chunk.End(), final: chunk.Final, err: err}
}

// CloseInput marks the end of the audio. Run finalizes the open utterance once
// every scheduled accurate request has reported, then returns.
func (o *Orchestrator) CloseInput() {
	o.closeOnce.Do(func() { close(o.inputDone) })
}

func (o *Orchestrator) transcribeJob(chunk audio.Chunk) func(context.Context) {
	return func(ctx context.Context) {
		msg := chunkMsg(chunk, nil)
		wav, err := audio.EncodeWAV(chunk.Samples, audio.SampleRate)
		if err == nil {
			tctx, cancel := context.WithTimeout(ctx, o.opts.AccurateTimeout)
			began := time.Now()
			msg.text, err = o.accurate.Transcribe(tctx, wav)
			cancel()
			o.metrics.AccurateDone(time.Since(began), err)
		}
		msg.err = err
		select {
		case o.results <- msg:
		case <-o.done:
		}
	}
}

// Run drives the event loop until ctx is cancelled or the input is closed and
// drained. Transcription failures never end it.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("orchestrator already running")
	}
	defer close(o.events)
	defer close(o.done)
	defer o.cancelBase()
	defer o.shutdown()

	if o.fast != nil {
		o.startFast(ctx)
	}

	inputDone := o.inputDone
	ended := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case f := <-o.frames:
			o.handleFrame(ctx, f)

		case r, ok := <-o.fastResults:
			if !ok {
				o.fastDown(ctx, "stream ended")
				continue
			}
			o.handleFast(ctx, r)

		case <-o.silenceC:
			o.silenceC = nil
			o.silenceExpired(ctx)

		case <-o.restartC:
			o.restartC = nil
			o.startFast(ctx)

		case m := <-o.results:
			o.pending.Add(-1)
			o.handleAccurate(ctx, m)
			if ended && o.pending.Load() == 0 {
				o.finish(ctx)
				return nil
			}

		case <-inputDone:
			inputDone = nil
			ended = true
			o.drainFrames(ctx)
			if o.pending.Load() == 0 {
				o.finish(ctx)
				return nil
			}
		}
	}
}

func (o *Orchestrator) drainFrames(ctx context.Context) {
	for {
		select {
		case f := <-o.frames:
			o.handleFrame(ctx, f)
		default:
			return
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context) {
	if o.open && o.cur.text != "" {
		o.finalize(ctx, SourceFast)
	}
	o.settle(ctx, true)
}

func (o *Orchestrator) shutdown() {
	o.stopSilence()
	if o.restartTimer != nil {
		o.restartTimer.Stop()
	}
	if o.stream != nil {
		o.stream.Close()
		o.stream = nil
	}
}

// Fast path.

func (o *Orchestrator) startFast(ctx context.Context) {
	stream, err := o.fast.Start(ctx)
	if err != nil {
		o.logger.Warn("fast path unavailable", "error", err, "retry_in", o.backoff.String())
		o.scheduleRestart(ctx)
		return
	}
	o.stream = stream
	o.fastResults = stream.Results()
	o.committed = ""
	o.logger.Info("fast path started", "backlog_samples", o.backlogLen)

	for _, f := range o.backlog {
		if f.end() <= o.lastFinalEnd {
			continue
		}
		if err := stream.Send(f.samples); err != nil {
			o.logger.Warn("fast path backlog replay failed", "error", err)
			o.fastDown(ctx, "replay failed")
			return
		}
	}
}

func (o *Orchestrator) fastDown(ctx context.Context, reason string) {
	if o.stream != nil {
		o.stream.Close()
		o.stream = nil
	}
	o.fastResults = nil
	o.logger.Warn("fast path down", "reason", reason, "retry_in", o.backoff.String())
	o.scheduleRestart(ctx)
}

func (o *Orchestrator) scheduleRestart(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	delay := o.backoff
	o.backoff = min(o.backoff*2, o.opts.RestartMax)
	o.restartTimer = time.NewTimer(delay)
	o.restartC = o.restartTimer.C
	o.metrics.FastPathRestarted()
}

func (o *Orchestrator) handleFrame(ctx context.Context, f frameMsg) {
	o.clock = f.end()

	o.backlog = append(o.backlog, f)
	o.backlogLen += len(f.samples)
	for len(o.backlog) > 1 && o.backlogLen-len(o.backlog[0].samples) >= o.opts.BacklogSamples {
		o.backlogLen -= len(o.backlog[0].samples)
		o.backlog = o.backlog[1:]
	}

	if o.stream != nil {
		if err := o.stream.Send(f.samples); err != nil {
			o.fastDown(ctx, err.Error())
		}
	}
}

func (o *Orchestrator) handleFast(ctx context.Context, r Result) {
	o.backoff = o.opts.RestartMin

	raw := strings.TrimSpace(r.Text)
	text := raw
	if o.committed != "" {
		text = MergeOverlap(o.committed, raw)
	}

	if !o.open {
		if text == "" {
			if r.IsFinal {
				o.committed = ""
			}
			return
		}
		o.nextID++
		o.cur = utterance{id: o.nextID, start: o.lastFinalEnd}
		o.open = true
	}
	if text != "" {
		o.cur.text = text
		o.lastRaw = raw
	}

	if r.IsFinal {
		o.committed = ""
		o.finalize(ctx, SourceFast)
		return
	}
	o.emit(ctx, Event{
		Utterance: o.cur.id,
		Text:      o.cur.text,
		Source:    SourceFast,
		Start:     o.cur.start,
		End:       o.clock,
	})
	o.resetSilence()
}

func (o *Orchestrator) silenceExpired(ctx context.Context) {
	if !o.open {
		return
	}
	if o.cur.text == "" {
		o.open = false
		return
	}
	// The recognizer keeps accumulating within its own segment; remember what
	// was already finalized so the next partial only carries new words.
	o.committed = o.lastRaw
	o.finalize(ctx, SourceFast)
}

func (o *Orchestrator) resetSilence() {
	o.stopSilence()
	o.silenceTimer = time.NewTimer(o.opts.SilenceTimeout)
	o.silenceC = o.silenceTimer.C
}

func (o *Orchestrator) stopSilence() {
	if o.silenceTimer != nil {
		o.silenceTimer.Stop()
		o.silenceTimer = nil
	}
	o.silenceC = nil
}

func (o *Orchestrator) finalize(ctx context.Context, src Source) {
	o.stopSilence()
	u := o.cur
	u.end = max(o.clock, u.start)
	o.open = false
	o.cur = utterance{}
	o.lastFinalEnd = u.end

	o.emit(ctx, Event{
		Utterance: u.id,
		Text:      u.text,
		IsFinal:   true,
		Source:    src,
		Start:     u.start,
		End:       u.end,
	})
	fin := &u
	o.remember(fin)
	if o.accurate != nil {
		o.awaiting = append(o.awaiting, fin)
		if len(o.awaiting) > maxFinalized {
			o.awaiting = o.awaiting[len(o.awaiting)-maxFinalized:]
		}
		o.settle(ctx, false)
	}
}

func (o *Orchestrator) remember(u *utterance) {
	o.finalized = append(o.finalized, u)
	if len(o.finalized) > maxFinalized {
		o.finalized = o.finalized[len(o.finalized)-maxFinalized:]
	}
}

// Accurate path.

func (o *Orchestrator) handleAccurate(ctx context.Context, m accurateMsg) {
	if m.err != nil {
		o.logger.Warn("accurate transcription failed", "chunk_seq", m.seq, "error", m.err)
	}
	m.text = strings.TrimSpace(m.text)
	if o.fast != nil {
		o.windows[m.seq] = m
		o.settle(ctx, false)
	}
	if m.err != nil || m.text == "" {
		return
	}

	if o.fast == nil || (o.stream == nil && !o.open && m.end > o.lastFinalEnd) {
		o.accurateOnly(ctx, m)
		return
	}
	o.accurateTail = m.text
}

// accurateOnly turns a chunk text into a final of its own, without the words
// the previous window already produced. Windows overlap by half, so a result
// older than the newest one seen adds nothing and is skipped.
func (o *Orchestrator) accurateOnly(ctx context.Context, m accurateMsg) {
	if o.accurateSeen && m.seq <= o.accurateSeq {
		return
	}
	o.accurateSeen = true
	o.accurateSeq = m.seq

	fresh := MergeOverlap(o.accurateTail, m.text)
	o.accurateTail = m.text
	if fresh == "" {
		return
	}

	o.nextID++
	u := &utterance{
		id:    o.nextID,
		start: max(m.start, o.lastFinalEnd),
		end:   m.end,
		text:  fresh,
	}
	o.lastFinalEnd = max(o.lastFinalEnd, m.end)
	o.emit(ctx, Event{
		Utterance: u.id,
		Text:      u.text,
		IsFinal:   true,
		Source:    SourceAccurate,
		Start:     u.start,
		End:       u.end,
	})
	o.remember(u)
}

// settle corrects every awaiting utterance whose windows have all reported.
// Once the input has ended and drained, nothing else will arrive and the rest
// settle with what they have.
func (o *Orchestrator) settle(ctx context.Context, ended bool) {
	o.droppedMu.Lock()
	for _, m := range o.dropped {
		o.windows[m.seq] = m
	}
	o.dropped = nil
	o.droppedMu.Unlock()

	kept := o.awaiting[:0]
	for _, u := range o.awaiting {
		texts, first, ok, ready := o.coverage(u, ended)
		if !ready {
			kept = append(kept, u)
			continue
		}
		if !ok {
			o.logger.Debug("accurate path incomplete, keeping fast final", "utterance", u.id)
			continue
		}
		o.correct(ctx, u, texts, first)
	}
	clear(o.awaiting[len(kept):])
	o.awaiting = kept

	floor := o.lastFinalEnd
	for _, u := range o.awaiting {
		floor = min(floor, u.start)
	}
	for seq := range o.windows {
		if int64(seq) < floor/o.opts.ChunkHop {
			delete(o.windows, seq)
		}
	}
}

// coverage walks the windows of u in order, from the one holding its start to
// the first one reaching its end. ok is false when one of them failed or was
// dropped; ready is false while one has not reported yet.
func (o *Orchestrator) coverage(u *utterance, ended bool) (texts []string, first accurateMsg, ok, ready bool) {
	if u.end <= u.start {
		return nil, first, false, true
	}
	ok = true
	for seq := uint64(u.start / o.opts.ChunkHop); ; seq++ {
		m, seen := o.windows[seq]
		if !seen {
			return texts, first, ok && len(texts) > 0, ended
		}
		if len(texts) == 0 && m.err == nil {
			first = m
		}
		switch {
		case m.err != nil:
			ok = false
		case m.text != "":
			texts = append(texts, m.text)
		}
		if m.end >= u.end || m.final {
			return texts, first, ok && len(texts) > 0, true
		}
	}
}

// correct replaces the text of u with the joined window texts. Words the
// first window caught from before u started are trimmed against the
// utterance finalized before it.
func (o *Orchestrator) correct(ctx context.Context, u *utterance, texts []string, first accurateMsg) {
	var joined string
	for _, t := range texts {
		fresh := MergeOverlap(joined, t)
		if fresh == "" {
			continue
		}
		if joined != "" {
			joined += " "
		}
		joined += fresh
	}
	if prev := o.previous(u); prev != nil && first.start < u.start {
		joined = MergeOverlap(prev.text, joined)
	}
	if joined == "" || sameWords(u.text, joined) {
		return
	}

	u.text = joined
	o.emit(ctx, Event{
		Utterance:  u.id,
		Text:       u.text,
		IsFinal:    true,
		Correction: true,
		Source:     SourceAccurate,
		Start:      u.start,
		End:        u.end,
	})
}

func (o *Orchestrator) previous(u *utterance) *utterance {
	var prev *utterance
	for _, f := range o.finalized {
		if f.id < u.id && (prev == nil || f.id > prev.id) {
			prev = f
		}
	}
	return prev
}

func (o *Orchestrator) emit(ctx context.Context, ev Event) {
	ev.Timestamp = o.opts.Now()
	kind := "partial"
	switch {
	case ev.Correction:
		kind = "correction"
	case ev.IsFinal:
		kind = "final"
	}
	o.metrics.TranscriptEvent(kind)
	if ev.IsFinal {
		o.logger.Info("transcript final",
			"utterance", ev.Utterance,
			"source", ev.Source,
			"correction", ev.Correction,
			"chars", len(ev.Text),
		)
	}
	select {
	case o.events <- ev:
	case <-ctx.Done():
	}
}

type goExecutor struct {
	ctx context.Context
	sem chan struct{}
}

func (e *goExecutor) TrySubmit(job func(context.Context)) bool {
	select {
	case e.sem <- struct{}{}:
	default:
		return false
	}
	go func() {
		defer func() { <-e.sem }()
		job(e.ctx)
	}()
	return true
}
