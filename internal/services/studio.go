package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sole-vault/shoe-studio/internal/models"
	"github.com/sole-vault/shoe-studio/internal/style"
)

// ErrInFlight is returned when a session already has a generation running.
var ErrInFlight = errors.New("a generation is already in progress")

// ImageGenerator produces one image for a prompt and style (e.g. *imagegen.Generator).
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, styleID models.StyleID) (*models.GenerationResult, error)
}

// Studio holds the UI state of every browser session and drives the
// idle -> loading -> success/failed cycle against the image generator.
type Studio struct {
	generator ImageGenerator

	mu       sync.Mutex
	sessions map[string]*studioSession
	now      func() time.Time
}

type studioSession struct {
	state    models.State
	done     chan struct{}
	subs     map[chan models.State]struct{}
	lastSeen time.Time
}

// NewStudio creates a new studio
func NewStudio(generator ImageGenerator) *Studio {
	return &Studio{
		generator: generator,
		sessions:  make(map[string]*studioSession),
		now:       time.Now,
	}
}

// getLocked returns the session for id, creating an idle one if needed. Caller holds s.mu.
func (s *Studio) getLocked(id string) *studioSession {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &studioSession{
			state: models.State{
				Phase:     models.PhaseIdle,
				Style:     models.DefaultStyle,
				UpdatedAt: s.now(),
			},
			subs: make(map[chan models.State]struct{}),
		}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.now()
	return sess
}

// State returns the current state of a session.
func (s *Studio) State(sessionID string) models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(sessionID).state
}

// Result returns the image of a session in the success phase.
func (s *Studio) Result(sessionID string) (*models.GenerationResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getLocked(sessionID).state
	if st.Phase != models.PhaseSuccess || st.Result == nil {
		return nil, false
	}
	return st.Result, true
}

// Generate starts a generation cycle for the session.
// A blank prompt only sets a notice and returns a validation error; a session
// that is already loading returns ErrInFlight. Neither calls the generator.
// The provider call is not cancelled when ctx is; it always runs to completion.
func (s *Studio) Generate(ctx context.Context, sessionID, prompt string, styleID models.StyleID) (models.State, error) {
	styleID = style.Parse(string(styleID))
	req := models.GenerationRequest{Prompt: prompt, Style: styleID}

	s.mu.Lock()
	sess := s.getLocked(sessionID)

	if err := req.Validate(); err != nil {
		if !sess.state.Busy() {
			sess.state.Notice = err.Error()
			sess.state.UpdatedAt = s.now()
			s.publishLocked(sess)
		}
		st := sess.state
		s.mu.Unlock()
		return st, err
	}

	if sess.state.Busy() {
		st := sess.state
		s.mu.Unlock()
		return st, ErrInFlight
	}

	sess.state = models.State{
		Phase:     models.PhaseLoading,
		Prompt:    prompt,
		Style:     styleID,
		UpdatedAt: s.now(),
	}
	done := make(chan struct{})
	sess.done = done
	s.publishLocked(sess)
	st := sess.state
	s.mu.Unlock()

	log.Info().
		Str("session_id", sessionID).
		Str("style", string(styleID)).
		Int("prompt_length", len(prompt)).
		Msg("Generation started")

	go s.run(context.WithoutCancel(ctx), sessionID, req, done)

	return st, nil
}

// run performs the single generator call and settles the session exactly once.
func (s *Studio) run(ctx context.Context, sessionID string, req models.GenerationRequest, done chan struct{}) {
	started := time.Now()
	res, err := s.callGenerator(ctx, req)
	if err == nil && res == nil {
		err = &models.GenerationError{Kind: models.ErrorKindEmptyResult, Message: "No images were generated."}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.done != done {
		close(done)
		return
	}

	sess.state.UpdatedAt = s.now()
	if err != nil {
		sess.state.Phase = models.PhaseFailed
		sess.state.Error = err.Error()
		log.Warn().Err(err).Str("session_id", sessionID).Dur("elapsed", time.Since(started)).Msg("Generation failed")
	} else {
		sess.state.Phase = models.PhaseSuccess
		sess.state.Result = res
		log.Info().Str("session_id", sessionID).Dur("elapsed", time.Since(started)).Msg("Generation succeeded")
	}
	close(done)
	s.publishLocked(sess)
}

func (s *Studio) callGenerator(ctx context.Context, req models.GenerationRequest) (res *models.GenerationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = models.NewProviderError(fmt.Errorf("panic: %v", r))
		}
	}()
	return s.generator.GenerateImage(ctx, req.Prompt, req.Style)
}

// Done returns a channel closed when the session's current cycle settles.
// It is already closed when nothing is in flight.
func (s *Studio) Done(sessionID string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getLocked(sessionID)
	if sess.state.Busy() && sess.done != nil {
		return sess.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Subscribe returns a channel that receives the session state on every change,
// starting with the current state. Only the latest state is buffered.
// The returned func unsubscribes and closes the channel.
func (s *Studio) Subscribe(sessionID string) (<-chan models.State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getLocked(sessionID)
	ch := make(chan models.State, 1)
	ch <- sess.state
	sess.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(sess.subs, ch)
			close(ch)
		})
	}
}

func (s *Studio) publishLocked(sess *studioSession) {
	for ch := range sess.subs {
		select {
		case ch <- sess.state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- sess.state
		}
	}
}

// Sweep drops sessions idle for longer than maxIdle. Loading sessions and
// sessions with subscribers are kept. Returns the number removed.
func (s *Studio) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for id, sess := range s.sessions {
		if sess.state.Busy() || len(sess.subs) > 0 || sess.lastSeen.After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive
// interval disables sweeping.
func (s *Studio) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 {
		log.Warn().Dur("interval", interval).Msg("Session sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(maxIdle); n > 0 {
				log.Debug().Int("removed", n).Msg("Swept idle sessions")
			}
		}
	}
}
