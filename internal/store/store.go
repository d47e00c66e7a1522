// Package store implements the Session Store: durable, per-session
// on-disk state under a sessions directory, one subdirectory per session.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentcore/turnengine/internal/event"
	"github.com/agentcore/turnengine/internal/logging"
	"github.com/agentcore/turnengine/pkg/types"
)

// ErrSessionNotFound is returned by LoadSession and ForkSession when the
// requested session does not exist on disk.
var ErrSessionNotFound = errors.New("session not found")

const sessionDirPrefix = "session-"

// Store is the Session Store. The zero value is not usable; use New.
type Store struct {
	sessionsDir   string
	expiryWindow  time.Duration
	mu            sync.Mutex
	fileLocks     map[string]*sync.Mutex
}

// New creates a Store rooted at sessionsDir, creating it if necessary.
func New(sessionsDir string, expiryWindow time.Duration) (*Store, error) {
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("ensure sessions dir: %w", err)
	}
	return &Store{
		sessionsDir:  sessionsDir,
		expiryWindow: expiryWindow,
		fileLocks:    make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) dir(id string) string {
	return filepath.Join(s.sessionsDir, sessionDirPrefix+id)
}

// SessionDir returns the on-disk directory for session id, the root a
// caller should pass to checkpoint.New for that session's recorder.
func (s *Store) SessionDir(id string) string {
	return s.dir(id)
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.fileLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.fileLocks[id] = l
	}
	return l
}

func generateID() string {
	return strings.ToLower(ulid.Make().String())
}

// CreateSession returns a fresh in-memory Session rooted at workDir. It is
// not persisted until SaveSession is called.
func (s *Store) CreateSession(workDir string, projectConfig types.ResolvedConfig) *types.Session {
	now := time.Now()
	id := generateID()
	if err := os.MkdirAll(s.dir(id), 0755); err != nil {
		logging.Error().Err(err).Str("sessionID", id).Msg("failed to create session directory")
	}
	sess := &types.Session{
		ID:               id,
		CreatedAt:        now,
		LastAccessedAt:   now,
		WorkingDirectory: workDir,
		Expired:          false,
		Messages:         []*types.Message{},
		SessionCtx: types.Context{
			WorkingDirectory: workDir,
			ResolvedConfig:   projectConfig,
		},
	}
	event.Publish(event.Event{Type: event.SessionCreated, Data: sess.ID})
	return sess
}

type metadataFile struct {
	ID               string      `json:"id"`
	CreatedAt        time.Time   `json:"createdAt"`
	LastAccessedAt   time.Time   `json:"lastAccessedAt"`
	WorkingDirectory string      `json:"workingDirectory"`
	Expired          bool        `json:"expired"`
	RuntimeSessionID string      `json:"sdkSessionId,omitempty"`
	ParentSessionID  string      `json:"parentSessionId,omitempty"`
	Stats            types.Stats `json:"stats"`
}

// SaveSession recomputes stats from the session's messages and writes
// metadata.json, messages.json and context.json. Each individual file is
// guaranteed valid JSON on successful return; the three files are not
// written with cross-file crash-atomicity.
func (s *Store) SaveSession(sess *types.Session) error {
	lock := s.lockFor(sess.ID)
	lock.Lock()
	defer lock.Unlock()

	sess.Stats = computeStats(sess.Messages)

	dir := s.dir(sess.ID)
	if err := os.MkdirAll(filepath.Join(dir, "snapshots"), 0755); err != nil {
		return fmt.Errorf("ensure session dir: %w", err)
	}

	meta := metadataFile{
		ID:               sess.ID,
		CreatedAt:        sess.CreatedAt,
		LastAccessedAt:   sess.LastAccessedAt,
		WorkingDirectory: sess.WorkingDirectory,
		Expired:          sess.Expired,
		RuntimeSessionID: sess.RuntimeSessionID,
		ParentSessionID:  sess.ParentSessionID,
		Stats:            sess.Stats,
	}
	if err := writeJSONAtomic(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, "messages.json"), sess.Messages); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, "context.json"), sess.SessionCtx); err != nil {
		return fmt.Errorf("write context: %w", err)
	}

	event.Publish(event.Event{Type: event.SessionUpdated, Data: sess.ID})
	return nil
}

func computeStats(messages []*types.Message) types.Stats {
	var stats types.Stats
	stats.MessageCount = len(messages)
	for _, m := range messages {
		if m.Usage != nil {
			stats.InputTokens += m.Usage.InputTokens
			stats.OutputTokens += m.Usage.OutputTokens
			stats.CostUSD += m.Usage.CostUSD
		}
	}
	if len(messages) > 0 {
		stats.LastMessagePreview = previewText(messages[len(messages)-1])
	}
	return stats
}

func previewText(m *types.Message) string {
	text := m.Text
	if text == "" {
		for _, b := range m.Blocks {
			if b.Type == types.BlockText {
				text = b.Text
				break
			}
		}
	}
	if len(text) > 80 {
		return text[:80]
	}
	return text
}

// LoadSession loads session id, bumping LastAccessedAt on the returned
// in-memory object (the caller must SaveSession to persist the bump). It
// returns ErrSessionNotFound if the session directory doesn't exist.
func (s *Store) LoadSession(id string) (*types.Session, error) {
	sess, err := s.loadSessionNoBump(id)
	if err != nil {
		return nil, err
	}
	sess.LastAccessedAt = time.Now()
	return sess, nil
}

// loadSessionNoBump is the variant used by listing operations, which must
// not perturb access-time ordering just by enumerating sessions.
func (s *Store) loadSessionNoBump(id string) (*types.Session, error) {
	dir := s.dir(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var meta metadataFile
	metaPath := filepath.Join(dir, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	var messages []*types.Message
	if data, err := os.ReadFile(filepath.Join(dir, "messages.json")); err == nil {
		if err := json.Unmarshal(data, &messages); err != nil {
			logging.Warn().Err(err).Str("sessionID", id).Msg("messages.json is corrupt; loading with empty message list")
			messages = nil
		}
	} else {
		logging.Warn().Str("sessionID", id).Msg("messages.json missing; loading with empty message list")
	}
	if messages == nil {
		messages = []*types.Message{}
	}

	var sessCtx types.Context
	if data, err := os.ReadFile(filepath.Join(dir, "context.json")); err == nil {
		_ = json.Unmarshal(data, &sessCtx)
	}

	expired := meta.Expired || time.Since(meta.CreatedAt) >= s.expiryWindow

	return &types.Session{
		ID:               meta.ID,
		CreatedAt:        meta.CreatedAt,
		LastAccessedAt:   meta.LastAccessedAt,
		WorkingDirectory: meta.WorkingDirectory,
		Expired:          expired,
		RuntimeSessionID: meta.RuntimeSessionID,
		ParentSessionID:  meta.ParentSessionID,
		Stats:            meta.Stats,
		Messages:         messages,
		SessionCtx:       sessCtx,
	}, nil
}

// ListSessions enumerates all sessions, sorted by LastAccessedAt
// descending.
func (s *Store) ListSessions() ([]*types.Session, error) {
	ids, err := s.listSessionIDs()
	if err != nil {
		return nil, err
	}
	sessions := make([]*types.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.loadSessionNoBump(id)
		if err != nil {
			logging.Warn().Err(err).Str("sessionID", id).Msg("skipping unreadable session")
			continue
		}
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastAccessedAt.After(sessions[j].LastAccessedAt)
	})
	return sessions, nil
}

// ListRecentSessions returns up to limit sessions sorted by CreatedAt
// descending.
func (s *Store) ListRecentSessions(limit int) ([]*types.Session, error) {
	sessions, err := s.ListSessions()
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (s *Store) listSessionIDs() ([]string, error) {
	entries, err := os.ReadDir(s.sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), sessionDirPrefix) {
			ids = append(ids, strings.TrimPrefix(e.Name(), sessionDirPrefix))
		}
	}
	return ids, nil
}

// ForkSession loads srcID (no-bump), copies its messages and context into
// a freshly created session with a new id, and records parentSessionID.
// The runtime session id and stats are not copied.
func (s *Store) ForkSession(srcID string) (*types.Session, error) {
	src, err := s.loadSessionNoBump(srcID)
	if err != nil {
		return nil, err
	}

	fork := s.CreateSession(src.SessionCtx.WorkingDirectory, src.SessionCtx.ResolvedConfig)
	fork.ParentSessionID = src.ID
	fork.SessionCtx.ActiveAgents = append([]string(nil), src.SessionCtx.ActiveAgents...)

	fork.Messages = make([]*types.Message, len(src.Messages))
	for i, m := range src.Messages {
		copied := *m
		copied.SessionID = fork.ID
		fork.Messages[i] = &copied
	}

	event.Publish(event.Event{Type: event.SessionCreated, Data: fork.ID})
	return fork, nil
}

// CleanOldSessions keeps the keepCount most-recently-created sessions and
// deletes the rest.
func (s *Store) CleanOldSessions(keepCount int) error {
	sessions, err := s.ListSessions()
	if err != nil {
		return err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if len(sessions) <= keepCount {
		return nil
	}
	for _, sess := range sessions[keepCount:] {
		s.DeleteSession(sess.ID)
	}
	return nil
}

// DeleteSession best-effort removes a session's directory. It never
// returns an error; failures are logged.
func (s *Store) DeleteSession(id string) {
	if err := os.RemoveAll(s.dir(id)); err != nil {
		logging.Warn().Err(err).Str("sessionID", id).Msg("failed to delete session directory")
		return
	}
	event.Publish(event.Event{Type: event.SessionDeleted, Data: id})
}

// AddMessage assigns a fresh id and timestamp to a new message, appends it
// to the session in memory, and bumps LastAccessedAt. The caller is
// responsible for persisting via SaveSession.
func (s *Store) AddMessage(sess *types.Session, role types.Role, text string, blocks []types.ContentBlock) *types.Message {
	msg := &types.Message{
		ID:        generateID(),
		SessionID: sess.ID,
		Role:      role,
		Text:      text,
		Blocks:    blocks,
		Timestamp: time.Now().UnixMilli(),
	}
	sess.Messages = append(sess.Messages, msg)
	sess.LastAccessedAt = time.Now()
	event.Publish(event.Event{Type: event.MessageAppended, Data: msg.ID})
	return msg
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
