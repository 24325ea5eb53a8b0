package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/store"
)

const stateKey = "sync_state"

// Data is the persisted shape of the sync settings.
type Data struct {
	AutoSyncEnabled bool             `json:"auto_sync_enabled"`
	IntervalMinutes int              `json:"interval_minutes,omitempty"`
	LastFormsSync   time.Time        `json:"last_forms_sync,omitzero"`
	LastEmailSync   time.Time        `json:"last_email_sync,omitzero"`
	LastFormsRun    *model.RunResult `json:"last_forms_run,omitempty"`
	LastEmailRun    *model.RunResult `json:"last_email_run,omitempty"`
}

// State is the process-owned sync settings object. It is loaded from the
// store once at startup and written back explicitly via Save; nothing else
// reads or writes the underlying row.
type State struct {
	mu    sync.RWMutex
	store store.Store
	data  Data
	log   *zap.Logger
}

// Load reads the persisted state, returning a zero-valued State when none
// has been saved yet.
func Load(ctx context.Context, st store.Store) (*State, error) {
	s := &State{
		store: st,
		log:   zap.L().With(zap.String("component", "settings")),
	}

	raw, err := st.GetSetting(ctx, stateKey)
	if err != nil {
		return nil, eris.Wrap(err, "settings: load")
	}
	if raw == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s.data); err != nil {
		// A corrupt row should not brick startup; start fresh and overwrite
		// on the next save.
		s.log.Warn("discarding unreadable sync state", zap.Error(err))
		s.data = Data{}
	}
	return s, nil
}

// Save writes the current state back to the store.
func (s *State) Save(ctx context.Context) error {
	s.mu.RLock()
	raw, err := json.Marshal(s.data)
	s.mu.RUnlock()
	if err != nil {
		return eris.Wrap(err, "settings: marshal")
	}
	return eris.Wrap(s.store.PutSetting(ctx, stateKey, string(raw)), "settings: save")
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// SetAutoSync toggles scheduled syncing.
func (s *State) SetAutoSync(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.AutoSyncEnabled = enabled
}

// AutoSync reports whether scheduled syncing is enabled.
func (s *State) AutoSync() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.AutoSyncEnabled
}

// SetInterval updates how often the scheduler fires, in minutes. Takes effect
// on the next process start.
func (s *State) SetInterval(minutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.IntervalMinutes = minutes
}

// Interval returns the configured scheduler interval in minutes, or 0 when
// the cron expression from config should be used.
func (s *State) Interval() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.IntervalMinutes
}

// RecordFormsRun stores the outcome of a forms sync run.
func (s *State) RecordFormsRun(res *model.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.LastFormsSync = time.Now().UTC()
	s.data.LastFormsRun = res
}

// RecordEmailRun stores the outcome of an email sync run.
func (s *State) RecordEmailRun(res *model.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.LastEmailSync = time.Now().UTC()
	s.data.LastEmailRun = res
}
