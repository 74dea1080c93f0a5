// Package gateway exposes interview sessions to browser clients over a
// WebSocket. The client sends user actions and speech-recognition results as
// JSON events; the server streams back view snapshots, capture-control
// notices, and synthesized audio as binary Opus frames.
//
// Each connection owns one session and its audio plumbing: a push-fed remote
// capture engine receiving the browser's transcript events, and a playback
// speaker whose frames are relayed to the client.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/mockmate/mockmate/internal/capture"
	"github.com/mockmate/mockmate/internal/config"
	"github.com/mockmate/mockmate/internal/interview"
	"github.com/mockmate/mockmate/internal/observe"
	"github.com/mockmate/mockmate/internal/playback"
	"github.com/mockmate/mockmate/internal/question"
	"github.com/mockmate/mockmate/internal/scorer"
	"github.com/mockmate/mockmate/internal/voicecmd"
	"github.com/mockmate/mockmate/pkg/provider/llm"
	"github.com/mockmate/mockmate/pkg/provider/tts"
)

// SessionRegistry tracks live sessions. Implementations assign ids and keep
// the active-session gauge.
type SessionRegistry interface {
	Add(sess *interview.Session) (id string)
	Remove(id string)
}

// Option configures a Handler.
type Option func(*Handler)

// WithCache sets the shared question cache.
func WithCache(cache *question.Cache) Option {
	return func(h *Handler) { h.cache = cache }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithRegistry sets the session registry.
func WithRegistry(r SessionRegistry) Option {
	return func(h *Handler) { h.registry = r }
}

// Handler upgrades HTTP requests to interview WebSocket connections.
type Handler struct {
	llm      llm.Provider
	tts      tts.Provider
	cfg      config.InterviewConfig
	cache    *question.Cache
	metrics  *observe.Metrics
	registry SessionRegistry
	commands *voicecmd.Matcher
}

// New creates a Handler backed by the given providers. cfg supplies session
// defaults and audio tuning.
func New(llmProvider llm.Provider, ttsProvider tts.Provider, cfg config.InterviewConfig, opts ...Option) *Handler {
	h := &Handler{
		llm:      llmProvider,
		tts:      ttsProvider,
		cfg:      cfg.WithDefaults(),
		commands: voicecmd.New(),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	if h.cache == nil {
		h.cache = question.NewCache(h.cfg.Cache.TTL, h.cfg.Cache.MaxEntries)
	}
	return h
}

// Register mounts the WebSocket endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /ws", h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.metrics.ConnectedClients.Add(ctx, 1)
	defer h.metrics.ConnectedClients.Add(ctx, -1)

	c := &client{
		h:      h,
		conn:   conn,
		out:    make(chan outbound, 256),
		cancel: cancel,
	}
	defer c.close()

	go c.writeLoop(ctx)
	c.readLoop(ctx)
	conn.Close(websocket.StatusNormalClosure, "")
}

// outbound is one queued server-to-client delivery: a JSON message or a
// binary audio frame.
type outbound struct {
	msg   *ServerMessage
	frame []byte
}

type client struct {
	h      *Handler
	conn   *websocket.Conn
	out    chan outbound
	cancel context.CancelFunc

	mu            sync.Mutex
	session       *interview.Session
	remote        *capture.Remote
	sessionID     string
	captureActive bool
}

func (c *client) readLoop(ctx context.Context) {
	for {
		var ev ClientEvent
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				slog.Debug("websocket read ended", "error", err)
			}
			return
		}
		c.handle(ctx, ev)
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ob := <-c.out:
			var err error
			if ob.frame != nil {
				err = c.conn.Write(ctx, websocket.MessageBinary, ob.frame)
			} else {
				err = wsjson.Write(ctx, c.conn, ob.msg)
			}
			if err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (c *client) handle(ctx context.Context, ev ClientEvent) {
	switch ev.Type {
	case EventSetup:
		if err := c.ensureSession(ctx, ev); err != nil {
			c.sendError(err)
			return
		}
		c.withSession(func(s *interview.Session) { s.AnnounceIntro() })

	case EventStart:
		if err := c.ensureSession(ctx, ev); err != nil {
			c.sendError(err)
			return
		}
		c.withSession(func(s *interview.Session) {
			if err := s.Start(); err != nil {
				c.sendError(err)
			}
		})

	case EventTranscript:
		c.mu.Lock()
		remote := c.remote
		c.mu.Unlock()
		if remote == nil {
			return
		}
		err := remote.Push(capture.Event{
			FinalDelta: ev.FinalDelta,
			Interim:    ev.Interim,
			IsFinal:    ev.IsFinal,
		})
		if err != nil && !errors.Is(err, capture.ErrEngineStopped) {
			slog.Debug("transcript event dropped", "error", err)
		}

	case EventTranscriptEnd:
		c.mu.Lock()
		remote := c.remote
		c.mu.Unlock()
		if remote != nil {
			remote.EndStream()
		}

	case EventDraft:
		c.withSession(func(s *interview.Session) { s.SetDraft(ev.Text) })

	case EventSubmit:
		c.opOrError(func(s *interview.Session) error { return s.Submit() })

	case EventSkip:
		c.opOrError(func(s *interview.Session) error { return s.Skip() })

	case EventAdvance:
		c.opOrError(func(s *interview.Session) error { return s.Advance() })

	case EventReset:
		c.withSession(func(s *interview.Session) { s.Reset() })

	default:
		c.sendError(fmt.Errorf("gateway: unknown event type %q", ev.Type))
	}
}

func (c *client) withSession(fn func(*interview.Session)) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		c.sendError(errors.New("gateway: no session; send a setup or start event first"))
		return
	}
	fn(s)
}

func (c *client) opOrError(fn func(*interview.Session) error) {
	c.withSession(func(s *interview.Session) {
		if err := fn(s); err != nil && !errors.Is(err, interview.ErrInvalidStage) {
			c.sendError(err)
		}
	})
}

// ensureSession builds the session and its audio plumbing on first use.
// Subsequent setup/start events reuse the existing session.
func (c *client) ensureSession(ctx context.Context, ev ClientEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return nil
	}

	cfg := c.sessionConfig(ev)

	remote := capture.NewRemote()
	recognizer := capture.New(remote, capture.Config{
		MaxRestarts: c.h.cfg.Capture.MaxRestarts,
		OnRestart: func(attempt int) {
			c.h.metrics.CaptureRestarts.Add(ctx, 1)
			c.send(&ServerMessage{Type: MessageCapture, Action: CaptureRestart, Attempt: attempt})
		},
		OnUnavailable: func(err error) {
			c.send(&ServerMessage{Type: MessageCapture, Action: CaptureStop})
			c.mu.Lock()
			s := c.session
			c.mu.Unlock()
			if s != nil {
				s.HandleCaptureUnavailable()
			}
		},
	})

	speaker := playback.New(c.h.tts, c.sendFrame, playback.Config{
		ChunkRunes:       c.h.cfg.Playback.ChunkRunes,
		ChunkTimeout:     c.h.cfg.Playback.ChunkTimeout,
		VoicePreferences: c.h.cfg.Playback.VoicePreferences,
		SpeedFactor:      c.h.cfg.Playback.SpeedFactor,
		OnWatchdog: func() {
			c.h.metrics.PlaybackWatchdogFires.Add(ctx, 1)
		},
	})

	sess, err := interview.New(ctx, cfg, interview.Deps{
		Questions: question.NewSource(c.h.llm, c.h.cache),
		Scorer:    scorer.New(c.h.llm),
		Playback:  speaker,
		Capture:   recognizer,
		Commands:  c.h.commands,
		Metrics:   c.h.metrics,
	})
	if err != nil {
		return err
	}

	c.session = sess
	c.remote = remote
	if c.h.registry != nil {
		c.sessionID = c.h.registry.Add(sess)
	}
	return nil
}

// sessionConfig fills missing setup fields from the configured defaults and
// caps the question count.
func (c *client) sessionConfig(ev ClientEvent) interview.Config {
	skill := ev.Skill
	if skill == "" {
		skill = c.h.cfg.DefaultSkill
	}
	difficulty := question.Difficulty(ev.Difficulty)
	if difficulty == "" {
		difficulty = c.h.cfg.DefaultDifficulty
	}
	count := ev.Count
	if count <= 0 {
		count = c.h.cfg.DefaultQuestionCount
	}
	if max := c.h.cfg.MaxQuestionCount; max > 0 && count > max {
		count = max
	}
	return interview.Config{
		Skill:         skill,
		Difficulty:    difficulty,
		QuestionCount: count,
		Locale:        c.h.cfg.Locale,
		OnUpdate:      c.sendView,
	}
}

// sendView queues a snapshot; capture-control notices are derived from
// CaptureActive transitions so the browser recognizer tracks the session's
// audio owner.
func (c *client) sendView(v interview.View) {
	c.mu.Lock()
	was := c.captureActive
	c.captureActive = v.CaptureActive
	c.mu.Unlock()

	if v.CaptureActive && !was {
		c.send(&ServerMessage{Type: MessageCapture, Action: CaptureStart})
	} else if !v.CaptureActive && was {
		c.send(&ServerMessage{Type: MessageCapture, Action: CaptureStop})
	}
	c.send(&ServerMessage{Type: MessageView, View: &v})
}

func (c *client) sendFrame(frame []byte) {
	select {
	case c.out <- outbound{frame: frame}:
	default:
		// Audio is latency-sensitive; a slow client loses frames rather
		// than stalling the session.
		slog.Debug("outbound queue full, dropping audio frame")
	}
}

func (c *client) send(msg *ServerMessage) {
	select {
	case c.out <- outbound{msg: msg}:
	default:
		slog.Warn("outbound queue full, dropping message", "type", msg.Type)
	}
}

func (c *client) sendError(err error) {
	c.send(&ServerMessage{Type: MessageError, Error: err.Error()})
}

func (c *client) close() {
	c.mu.Lock()
	s := c.session
	id := c.sessionID
	c.session = nil
	c.mu.Unlock()

	if s != nil {
		s.Close()
	}
	if id != "" && c.h.registry != nil {
		c.h.registry.Remove(id)
	}
}
