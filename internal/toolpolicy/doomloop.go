package toolpolicy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// DoomLoopThreshold is the number of identical consecutive calls before a
// session is flagged as looping.
const DoomLoopThreshold = 3

// doomLoopHistoryCap bounds the per-session history retained; only the
// last DoomLoopThreshold-1 entries are ever compared.
const doomLoopHistoryCap = 10

// DoomLoopDetector flags a tool call that repeats, with identical
// arguments, the last DoomLoopThreshold-1 calls made in the same session.
type DoomLoopDetector struct {
	mu      sync.Mutex
	history map[string][]string
}

// NewDoomLoopDetector constructs an empty detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{history: make(map[string][]string)}
}

// Check records toolName/args for sessionID and reports whether doing so
// completed a run of DoomLoopThreshold identical calls.
func (d *DoomLoopDetector) Check(sessionID, toolName string, args map[string]any) bool {
	hash := hashCall(toolName, args)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := d.history[sessionID]
	looped := false
	if len(history) >= DoomLoopThreshold-1 {
		looped = true
		start := len(history) - (DoomLoopThreshold - 1)
		for i := start; i < len(history); i++ {
			if history[i] != hash {
				looped = false
				break
			}
		}
	}

	history = append(history, hash)
	if len(history) > doomLoopHistoryCap {
		history = history[len(history)-doomLoopHistoryCap:]
	}
	d.history[sessionID] = history

	return looped
}

// Reset clears the recorded history for a session, e.g. once a turn ends.
func (d *DoomLoopDetector) Reset(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}

// hashCall fingerprints a call. encoding/json sorts map keys
// alphabetically when marshaling, so this is stable across Go's
// randomized map iteration order without a separate canonicalization step.
func hashCall(toolName string, args map[string]any) string {
	data, _ := json.Marshal(args)
	h := sha256.Sum256(append([]byte(toolName+"\x00"), data...))
	return hex.EncodeToString(h[:])
}
