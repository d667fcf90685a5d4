package squeeze

import (
	"context"
	"fmt"
	"time"
)

// persistedState is the single keyed document the engine saves at flush
// points (end of a poll batch, shutdown) and rehydrates on startup so
// restarts do not reset squeeze memory mid-session.
type persistedState struct {
	States    map[string]*TickerState `json:"states"`
	Series    map[string]*Series      `json:"series"`
	Cooldowns map[string]time.Time    `json:"cooldowns"`
	SavedAt   time.Time               `json:"saved_at"`
}

// Flush serializes state, time series, and cooldowns to the store.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.RLock()
	doc := persistedState{
		States:    e.states,
		Series:    e.series,
		Cooldowns: e.cooldowns,
		SavedAt:   e.now(),
	}
	err := e.store.Set(ctx, stateDocKey, doc)
	e.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("persisting squeeze state: %w", err)
	}
	return nil
}

func (e *Engine) rehydrate(ctx context.Context) error {
	var doc persistedState
	if err := e.store.Get(ctx, stateDocKey, &doc); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if doc.States != nil {
		e.states = doc.States
	}
	if doc.Series != nil {
		e.series = doc.Series
		for _, s := range e.series {
			if s.Capacity <= 0 {
				s.Capacity = e.cfg.SeriesCapacity
			}
		}
	}
	if doc.Cooldowns != nil {
		e.cooldowns = doc.Cooldowns
	}

	e.logger.Info("squeeze state rehydrated")
	return nil
}
