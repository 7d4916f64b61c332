package worldboss

import "fmt"

// FormatRemaining renders milliseconds as M:SS. Minutes are unpadded and
// unbounded; partial seconds are truncated.
func FormatRemaining(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / 1000
	return fmt.Sprintf("%d:%02d", totalSeconds/60, totalSeconds%60)
}
