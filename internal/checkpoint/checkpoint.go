// Package checkpoint implements the Checkpoint Recorder: snapshots taken
// immediately before a user turn is dispatched, so a session's file edits
// can be rewound back to that point. The recorder itself only tracks
// metadata; actual file-content capture is delegated to the runtime's own
// file-checkpointing feature, enabled per-turn by the caller.
package checkpoint

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

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agentcore/turnengine/internal/event"
	"github.com/agentcore/turnengine/internal/logging"
	"github.com/agentcore/turnengine/pkg/types"
)

// ErrCheckpointNotFound is returned by RestoreCheckpoint for an unknown id.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// RuntimeRewinder invokes the runtime handle's file-rewind primitive.
type RuntimeRewinder interface {
	RewindFiles(checkpointID string) error
}

// Recorder is the Checkpoint Recorder, scoped to a single session.
type Recorder struct {
	mu         sync.Mutex
	sessionDir string
	keepCount  int
}

// New creates a Recorder whose metadata.json lives under
// <sessionDir>/checkpoints/metadata.json.
func New(sessionDir string, keepCount int) *Recorder {
	if keepCount <= 0 {
		keepCount = 10
	}
	return &Recorder{sessionDir: sessionDir, keepCount: keepCount}
}

func (r *Recorder) metadataPath() string {
	return filepath.Join(r.sessionDir, "checkpoints", "metadata.json")
}

// readAll loads the metadata array, recovering to empty (with a warning)
// if the file is missing or not a valid JSON array, per invariant C2.
func (r *Recorder) readAll() []types.Checkpoint {
	data, err := os.ReadFile(r.metadataPath())
	if err != nil {
		return nil
	}
	var checkpoints []types.Checkpoint
	if err := json.Unmarshal(data, &checkpoints); err != nil {
		logging.Warn().Err(err).Str("path", r.metadataPath()).Msg("checkpoint metadata corrupt; reinitializing to empty")
		return nil
	}
	return checkpoints
}

func (r *Recorder) writeAll(checkpoints []types.Checkpoint) error {
	dir := filepath.Dir(r.metadataPath())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("ensure checkpoints dir: %w", err)
	}
	if checkpoints == nil {
		checkpoints = []types.Checkpoint{}
	}
	data, err := json.MarshalIndent(checkpoints, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.metadataPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, r.metadataPath())
}

// CaptureCheckpoint records a checkpoint whose id equals messageID,
// appending it in capture order and evicting the oldest entry if the keep
// count is exceeded.
func (r *Recorder) CaptureCheckpoint(messageID, description, runtimeSessionID string) (types.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := types.Checkpoint{
		ID:               messageID,
		Description:      description,
		CapturedAt:       time.Now(),
		RuntimeSessionID: runtimeSessionID,
	}

	checkpoints := append(r.readAll(), cp)

	var evicted *types.Checkpoint
	if len(checkpoints) > r.keepCount {
		evicted = &checkpoints[0]
		checkpoints = checkpoints[1:]
	}

	if err := r.writeAll(checkpoints); err != nil {
		return types.Checkpoint{}, err
	}

	event.Publish(event.Event{Type: event.CheckpointCaptured, Data: cp.ID})
	if evicted != nil {
		event.Publish(event.Event{Type: event.CheckpointEvicted, Data: evicted.ID})
	}
	return cp, nil
}

// ListCheckpoints returns this session's checkpoints sorted by capture
// time, newest first.
func (r *Recorder) ListCheckpoints() []types.Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	checkpoints := r.readAll()
	sort.SliceStable(checkpoints, func(i, j int) bool {
		return checkpoints[i].CapturedAt.After(checkpoints[j].CapturedAt)
	})
	return checkpoints
}

// RestoreCheckpoint invokes the runtime handle's file-rewind primitive for
// id. It fails with ErrCheckpointNotFound if id isn't recorded locally, or
// if the runtime itself reports no checkpoint found.
func (r *Recorder) RestoreCheckpoint(id string, runtime RuntimeRewinder) error {
	r.mu.Lock()
	checkpoints := r.readAll()
	r.mu.Unlock()

	found := false
	for _, cp := range checkpoints {
		if cp.ID == id {
			found = true
			break
		}
	}
	if !found {
		return ErrCheckpointNotFound
	}

	if err := runtime.RewindFiles(id); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no checkpoint found") {
			return fmt.Errorf("%w: %s", ErrCheckpointNotFound, err)
		}
		return fmt.Errorf("rewind files for checkpoint %s: %w", id, err)
	}
	event.Publish(event.Event{Type: event.CheckpointRestored, Data: id})
	return nil
}

// Diff computes a patch-text preview between the text a checkpoint was
// captured against and the current text, for rendering before a caller
// commits to RestoreCheckpoint. before/after are the checkpoint-time and
// current text respectively; the caller is responsible for locating both.
func Diff(before, after string) (diffText string, additions, deletions int) {
	if before == after {
		return "", 0, 0
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countLines(d.Text)
		}
	}

	patches := dmp.PatchMake(before, diffs)
	return dmp.PatchToText(patches), additions, deletions
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	lines := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		lines++
	}
	return lines
}

// DescribeFromText derives a checkpoint description per the spec's
// triggering rule: the first 80 characters of text, or a timestamped
// fallback when text is empty.
func DescribeFromText(text string) string {
	trimmed := text
	if runes := []rune(trimmed); len(runes) > 80 {
		trimmed = string(runes[:80])
	}
	if trimmed == "" {
		return fmt.Sprintf("Checkpoint at %s", time.Now().UTC().Format(time.RFC3339))
	}
	return trimmed
}
