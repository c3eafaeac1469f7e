// Package engine implements the conversation orchestrator and the
// fail-fast engine bootstrap.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liurenke/renkebot/internal/apperr"
	"github.com/liurenke/renkebot/internal/config"
	"github.com/liurenke/renkebot/internal/history"
	"github.com/liurenke/renkebot/internal/llm"
	"github.com/liurenke/renkebot/internal/observability"
	"github.com/liurenke/renkebot/internal/session"
)

const defaultSystemPrompt = "You are a helpful and friendly AI assistant. " +
	"Keep your answers concise and relevant to the conversation history."

const bootstrapPingTimeout = 5 * time.Second

// Engine composes system prompt, stored history and the new user turn
// into one ordered sequence, invokes the model and persists the turn.
type Engine struct {
	model        llm.Client
	store        history.Store
	sessions     *session.Manager
	metrics      *observability.Metrics
	systemPrompt string
	modelTimeout time.Duration
}

// New wires an engine from already-constructed dependencies.
func New(model llm.Client, store history.Store, metrics *observability.Metrics, systemPrompt string, modelTimeout time.Duration) *Engine {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &Engine{
		model:        model,
		store:        store,
		sessions:     session.NewManager(store),
		metrics:      metrics,
		systemPrompt: systemPrompt,
		modelTimeout: modelTimeout,
	}
}

// Bootstrap builds the engine for production: model client, resolved
// history store endpoint, store connectivity probe and system prompt.
// Any failure is fatal; the process must not serve with a partially
// initialized engine.
func Bootstrap(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (*Engine, error) {
	model, err := llm.New(cfg.Model)
	if err != nil {
		return nil, apperr.Initialization(err, "model client for provider %q", cfg.Model.Provider)
	}

	env := config.DetectEnvironment()
	ep, err := cfg.ResolveEndpoint(config.HistoryStoreService, env)
	if err != nil {
		return nil, err
	}
	backend := cfg.Services[config.HistoryStoreService].Backend
	log.Printf("history store: backend=%s environment=%s host=%s ttl=%s", backend, env, ep.Host, ep.TTL)

	store, err := history.NewStore(ctx, backend, ep)
	if err != nil {
		return nil, apperr.Initialization(err, "history store backend %q", backend)
	}

	pingCtx, cancel := context.WithTimeout(ctx, bootstrapPingTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, apperr.Initialization(err, "history store at %s unreachable", ep.Host)
	}

	prompt, err := loadSystemPrompt(cfg.Prompt.SystemFile)
	if err != nil {
		store.Close()
		return nil, err
	}

	return New(model, store, metrics, prompt, cfg.Model.Timeout), nil
}

func loadSystemPrompt(path string) (string, error) {
	if path == "" {
		return defaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperr.Configuration("read system prompt file %s: %v", path, err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", apperr.Configuration("system prompt file %s is empty", path)
	}
	return prompt, nil
}

// Respond runs one conversation turn. A blank query is a documented
// no-op: no model call, no history mutation. When sessionID is empty a
// new globally unique identifier is minted and returned.
func (e *Engine) Respond(ctx context.Context, sessionID, query string) (string, string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
		log.Printf("minted new session id %s", sessionID)
	}
	if strings.TrimSpace(query) == "" {
		e.metrics.ObserveIndicator("blank_input")
		return "", sessionID, nil
	}

	turnStart := time.Now()
	release := e.sessions.LockSession(sessionID)
	e.metrics.ActiveSessions.Set(float64(e.sessions.ActiveLocks()))
	defer func() {
		release()
		e.metrics.ActiveSessions.Set(float64(e.sessions.ActiveLocks()))
	}()

	handle := e.sessions.GetOrCreate(sessionID)

	fetchStart := time.Now()
	stored, err := handle.Messages(ctx)
	if err != nil {
		e.metrics.StoreErrors.WithLabelValues("read").Inc()
		e.metrics.ObserveIndicator("store_unavailable")
		return "", sessionID, err
	}
	e.metrics.ObserveStage(observability.StageHistoryFetch, time.Since(fetchStart))

	// System prompt first, then stored turns, then the new user turn.
	// The system prompt is never persisted; it is re-supplied here on
	// every composition.
	userMsg := history.UserMessage(query)
	composed := make([]history.Message, 0, len(stored)+2)
	composed = append(composed, history.Message{Role: history.RoleSystem, Content: e.systemPrompt})
	composed = append(composed, stored...)
	composed = append(composed, userMsg)

	modelCtx := ctx
	if e.modelTimeout > 0 {
		var cancel context.CancelFunc
		modelCtx, cancel = context.WithTimeout(ctx, e.modelTimeout)
		defer cancel()
	}
	modelStart := time.Now()
	reply, err := e.model.Complete(modelCtx, composed)
	if err != nil {
		e.metrics.ObserveIndicator("model_error")
		return "", sessionID, apperr.ModelInvocation(err, "model call for session %s", sessionID)
	}
	e.metrics.ObserveStage(observability.StageModelCall, time.Since(modelStart))

	appendStart := time.Now()
	if err := handle.Append(ctx, userMsg, history.AssistantMessage(reply)); err != nil {
		e.metrics.StoreErrors.WithLabelValues("append").Inc()
		e.metrics.ObserveIndicator("store_unavailable")
		return "", sessionID, err
	}
	e.metrics.ObserveStage(observability.StageHistoryAppend, time.Since(appendStart))
	e.metrics.ObserveStage(observability.StageTurnTotal, time.Since(turnStart))

	return reply, sessionID, nil
}

// Ready probes the history store, for the readiness endpoint.
func (e *Engine) Ready(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Sessions exposes the session manager for janitor wiring.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Close releases the store connection.
func (e *Engine) Close() error {
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("close history store: %w", err)
	}
	return nil
}
