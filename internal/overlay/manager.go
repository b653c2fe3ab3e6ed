package overlay

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tmm22/VoiceInk-sub006/internal/config"
)

// Manager owns at most one active overlay session over the settings store.
// Beginning while one is active flattens: the prior overlay ends first, so
// restore targets always chain back to the user's own selection.
type Manager struct {
	logger *slog.Logger
	store  *config.Store
	path   string

	// applying marks writes originated here so the settings subscriber can
	// tell overlay mutations apart from user edits.
	applying atomic.Bool

	mu     sync.Mutex
	active *Session

	unsubscribe func()
}

// NewManager builds an overlay manager and recovers any snapshot left behind
// by a crash mid-overlay: the persisted original selection is restored and
// the snapshot removed before any new overlay can begin.
func NewManager(logger *slog.Logger, store *config.Store, path string) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := &Manager{logger: logger, store: store, path: path}

	sess, ok, err := loadSession(path)
	if err != nil {
		return nil, err
	}
	if ok {
		m.applying.Store(true)
		_, restoreErr := store.Update(func(s *config.Settings) {
			s.Selection = sess.Original
		})
		m.applying.Store(false)
		if restoreErr != nil {
			return nil, fmt.Errorf("recover overlay session %s: %w", sess.ID, restoreErr)
		}
		if err := removeSession(path); err != nil {
			return nil, err
		}
		logger.Info("recovered interrupted overlay session",
			"id", sess.ID, "rule", sess.RuleName, "started_at", sess.StartedAt)
	}

	m.unsubscribe = store.Subscribe(m.onSettingsChanged)
	return m, nil
}

// Close detaches the manager from settings notifications.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Active returns a copy of the current overlay session, if any.
func (m *Manager) Active() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Session{}, false
	}
	return *m.active, true
}

// Begin applies a rule's selection on top of the user's settings. The original
// selection is persisted before mutation so End (or crash recovery) can
// restore it bit-for-bit.
func (m *Manager) Begin(rule config.OverlayRule) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		if err := m.endLocked(); err != nil {
			return Session{}, err
		}
	}

	settings, err := m.store.Get()
	if err != nil {
		return Session{}, fmt.Errorf("snapshot settings for overlay: %w", err)
	}

	sess := Session{
		ID:        uuid.NewString(),
		RuleName:  rule.Name,
		StartedAt: time.Now(),
		AutoSend:  rule.AutoSend,
		Original:  settings.Selection,
	}
	if err := saveSession(m.path, sess); err != nil {
		return Session{}, err
	}

	m.applying.Store(true)
	_, err = m.store.Update(func(s *config.Settings) {
		s.Selection = mergeSelection(s.Selection, rule.Apply)
	})
	m.applying.Store(false)
	if err != nil {
		// Settings were not mutated, so the snapshot is stale.
		if removeErr := removeSession(m.path); removeErr != nil {
			m.logger.Warn("remove stale overlay snapshot failed", "error", removeErr.Error())
		}
		return Session{}, fmt.Errorf("apply overlay %q: %w", rule.Name, err)
	}

	m.active = &sess
	m.logger.Info("overlay session began", "id", sess.ID, "rule", rule.Name)
	return sess, nil
}

// End restores the persisted original selection and drops the snapshot.
func (m *Manager) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	return m.endLocked()
}

func (m *Manager) endLocked() error {
	// Restore from disk, not memory: the durable snapshot is the source of
	// truth the crash-recovery path also reads.
	sess, ok, err := loadSession(m.path)
	if err != nil {
		return err
	}
	if !ok {
		sess = *m.active
	}

	m.applying.Store(true)
	_, err = m.store.Update(func(s *config.Settings) {
		s.Selection = sess.Original
	})
	m.applying.Store(false)
	if err != nil {
		return fmt.Errorf("restore selection for overlay %s: %w", sess.ID, err)
	}

	if err := removeSession(m.path); err != nil {
		return err
	}

	m.logger.Info("overlay session ended", "id", sess.ID, "rule", sess.RuleName)
	m.active = nil
	return nil
}

// onSettingsChanged rebases the restore target when the user edits settings
// while an overlay is active. Overlay-originated writes are ignored.
func (m *Manager) onSettingsChanged(settings config.Settings) {
	if m.applying.Load() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}

	m.active.Original = settings.Selection
	if err := saveSession(m.path, *m.active); err != nil {
		m.logger.Warn("rebase overlay snapshot failed", "id", m.active.ID, "error", err.Error())
	}
}

// mergeSelection overlays non-empty rule fields on the current selection.
// EnhancementEnabled always comes from the rule; it expresses intent even
// when false.
func mergeSelection(current config.Selection, apply config.Selection) config.Selection {
	merged := current
	if apply.TranscriptionModel != "" {
		merged.TranscriptionModel = apply.TranscriptionModel
	}
	if apply.Language != "" {
		merged.Language = apply.Language
	}
	merged.EnhancementEnabled = apply.EnhancementEnabled
	if apply.EnhancementProvider != "" {
		merged.EnhancementProvider = apply.EnhancementProvider
	}
	if apply.EnhancementModel != "" {
		merged.EnhancementModel = apply.EnhancementModel
	}
	if apply.PromptID != "" {
		merged.PromptID = apply.PromptID
	}
	return merged
}
