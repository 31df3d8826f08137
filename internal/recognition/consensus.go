package recognition

import (
	"context"
	"regexp"
	"strings"
)

// BufferSize is how many consecutive matching reads must agree before the
// engine trusts a plate. Detections arrive several times per second while a
// vehicle is stopped at the gate, so three reads add no real latency.
const BufferSize = 3

// platePattern is the national plate format: 3 uppercase letters, 3 digits,
// 1 uppercase letter, e.g. ABC123D.
var platePattern = regexp.MustCompile(`[A-Z]{3}[0-9]{3}[A-Z]`)

// Recognizer is the external plate-reading collaborator. Implementations run
// detection plus OCR on the current camera frame and return the raw text, or
// ok=false when nothing was read this cycle.
type Recognizer func(ctx context.Context) (text string, ok bool)

// ExtractPlate searches raw OCR output for a plate-shaped token. OCR tends to
// pad the plate with stray characters, so a substring match is used rather
// than a full-string one.
func ExtractPlate(raw string) (string, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	m := platePattern.FindString(cleaned)
	return m, m != ""
}

// ValidPlate reports whether s is exactly one well-formed plate.
func ValidPlate(s string) bool {
	m := platePattern.FindString(s)
	return m == s && s != ""
}

// ConsensusBuffer collapses noisy per-frame plate reads into one trusted
// plate. Candidates accumulate until the buffer is full, then the majority
// value wins with ties broken by first-seen order.
type ConsensusBuffer struct {
	window []string
}

// NewConsensusBuffer returns an empty buffer.
func NewConsensusBuffer() *ConsensusBuffer {
	return &ConsensusBuffer{window: make([]string, 0, BufferSize)}
}

// Observe appends one validated candidate. When the buffer reaches capacity
// it resolves: the winning plate is returned with resolved=true and the
// buffer is cleared for the next detection episode.
func (b *ConsensusBuffer) Observe(candidate string) (plate string, resolved bool) {
	b.window = append(b.window, candidate)
	if len(b.window) < BufferSize {
		return "", false
	}
	plate = b.resolve()
	b.window = b.window[:0]
	return plate, true
}

// Reset discards buffered candidates. Called when the presence signal clears
// mid-episode so reads from one vehicle never bleed into the next.
func (b *ConsensusBuffer) Reset() {
	b.window = b.window[:0]
}

// Len returns the number of buffered candidates.
func (b *ConsensusBuffer) Len() int { return len(b.window) }

func (b *ConsensusBuffer) resolve() string {
	counts := make(map[string]int, len(b.window))
	best := b.window[0]
	for _, p := range b.window {
		counts[p]++
		// strict > keeps the first-seen winner on ties
		if counts[p] > counts[best] {
			best = p
		}
	}
	return best
}
