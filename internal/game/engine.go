package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrSessionNotFound  = errors.New("game session not found")
	ErrSessionCompleted = errors.New("game already completed")
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// State is the full server-side state of one game session. Answers are kept
// here and stripped before anything is sent to the client while the round is
// still active.
type State struct {
	SessionID  string               `json:"session_id"`
	AssetType  string               `json:"asset_type"`
	Instrument string               `json:"instrument"`
	Timeframe  string               `json:"timeframe"`
	Difficulty int                  `json:"difficulty"`
	Setup      []float64            `json:"setup"`
	Overlays   map[string][]float64 `json:"overlays"`
	Options    []Option             `json:"options"`
	StartTime  time.Time            `json:"start_time"`
	Status     string               `json:"status"`
	UserAnswer *int                 `json:"user_answer"`
	IsCorrect  *bool                `json:"is_correct"`
	Score      int                  `json:"score"`
	TimeTaken  float64              `json:"time_taken"`
}

// Result is returned to the player after a guess.
type Result struct {
	SessionID     string  `json:"session_id"`
	IsCorrect     bool    `json:"is_correct"`
	Score         int     `json:"score"`
	TimeTaken     float64 `json:"time_taken"`
	CorrectOption int     `json:"correct_option"`
}

// Engine orchestrates the core loop: seed -> options -> guess -> score.
// Sessions live in memory for the lifetime of the process.
type Engine struct {
	svc *Service
	log *zap.Logger

	mu       sync.Mutex
	sessions map[string]*State

	now func() time.Time
}

func NewEngine(svc *Service, log *zap.Logger) *Engine {
	return &Engine{
		svc:      svc,
		log:      log,
		sessions: make(map[string]*State),
		now:      time.Now,
	}
}

// Seed starts a new session and returns its client-safe state.
func (e *Engine) Seed(ctx context.Context, sessionID string, difficulty int) *State {
	params := e.svc.GenerateSession(difficulty)
	round := e.svc.GenerateRound(ctx, params)

	state := &State{
		SessionID:  sessionID,
		AssetType:  params.AssetType,
		Instrument: params.Instrument,
		Timeframe:  params.Timeframe,
		Difficulty: params.Difficulty,
		Setup:      round.Setup,
		Overlays:   round.Overlays,
		Options:    round.Options,
		StartTime:  e.now(),
		Status:     StatusActive,
	}

	e.mu.Lock()
	e.sessions[sessionID] = state
	e.mu.Unlock()

	e.log.Info("seeded game session",
		zap.String("session_id", sessionID),
		zap.String("instrument", params.Instrument),
		zap.Int("difficulty", params.Difficulty))

	return clientView(state)
}

// SubmitGuess scores the player's answer and completes the session.
func (e *Engine) SubmitGuess(sessionID string, answer int) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if state.Status != StatusActive {
		return nil, ErrSessionCompleted
	}

	timeTaken := e.now().Sub(state.StartTime).Seconds()
	correct := e.svc.CheckAnswer(answer, state.Options)
	score := e.svc.Score(correct, state.Difficulty, timeTaken)

	state.UserAnswer = &answer
	state.IsCorrect = &correct
	state.Score = score
	state.TimeTaken = timeTaken
	state.Status = StatusCompleted

	return &Result{
		SessionID:     sessionID,
		IsCorrect:     correct,
		Score:         score,
		TimeTaken:     timeTaken,
		CorrectOption: correctOption(state.Options),
	}, nil
}

// State returns the client-safe view of a session.
func (e *Engine) State(sessionID string) (*State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return clientView(state), nil
}

// clientView copies the state, hiding which option is correct while the
// round is still active.
func clientView(state *State) *State {
	view := *state
	if state.Status != StatusActive {
		return &view
	}
	safe := make([]Option, len(state.Options))
	for i, opt := range state.Options {
		safe[i] = Option{ID: opt.ID, Data: opt.Data}
	}
	view.Options = safe
	return &view
}

func correctOption(options []Option) int {
	for _, opt := range options {
		if opt.IsCorrect {
			return opt.ID
		}
	}
	return -1
}
