package permission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// doomLoopThreshold is the number of identical consecutive tool calls
// before a call is flagged as a doom loop.
const doomLoopThreshold = 3

// doomLoopHistoryLimit bounds per-session history so a long-running
// session's detector state cannot grow unbounded.
const doomLoopHistoryLimit = 10

// doomLoopDetector flags a tool call as repeating when the same tool name
// and input have been seen doomLoopThreshold times in a row for a session.
// This is an enrichment beyond the core arbiter contract: a repeated call
// is still routed through the normal decision procedure; Arbiter.Decide
// only publishes a permission.required event flagged doomLoop when Check
// reports a loop.
type doomLoopDetector struct {
	mu      sync.Mutex
	history map[string][]string
}

func newDoomLoopDetector() *doomLoopDetector {
	return &doomLoopDetector{history: make(map[string][]string)}
}

// Check records toolName+input for sessionID and reports whether the last
// doomLoopThreshold calls (including this one) are identical.
func (d *doomLoopDetector) Check(sessionID, toolName string, input any) bool {
	hash := hashCall(toolName, input)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := d.history[sessionID]
	isLoop := false
	if len(history) >= doomLoopThreshold-1 {
		isLoop = true
		start := len(history) - (doomLoopThreshold - 1)
		for i := start; i < len(history); i++ {
			if history[i] != hash {
				isLoop = false
				break
			}
		}
	}

	history = append(history, hash)
	if len(history) > doomLoopHistoryLimit {
		history = history[len(history)-doomLoopHistoryLimit:]
	}
	d.history[sessionID] = history

	return isLoop
}

// Reset clears history for a session, e.g. once a different tool call
// breaks the loop or the turn ends.
func (d *doomLoopDetector) Reset(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}

func hashCall(toolName string, input any) string {
	data, _ := json.Marshal(struct {
		Tool  string `json:"tool"`
		Input any    `json:"input"`
	}{Tool: toolName, Input: input})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
