package library

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// wordLevelIndicatorThreshold is the number of word-level markers a caption
// file must contain before it is reported as word-timed. A sentence-level
// file can contain the odd short cue, so a single hit is not enough.
const wordLevelIndicatorThreshold = 3

// HasWordTimestamps reports whether a caption file contains word-level timing.
// It scans for highlighting tags and for very short cue intervals, which
// sentence-level output does not produce in quantity.
func HasWordTimestamps(vttPath string) bool {
	file, err := os.Open(vttPath)
	if err != nil {
		return false
	}
	defer file.Close()

	indicators := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "<u>"), strings.Contains(line, "<c>"), strings.Contains(line, "<c.highlight>"):
			indicators++
		case strings.Contains(line, "-->"):
			if start, end, ok := parseCueInterval(line); ok && end > start && end-start < 2.0 {
				indicators++
			}
		}
		if indicators >= wordLevelIndicatorThreshold {
			return true
		}
	}
	return false
}

// parseCueInterval extracts the trailing seconds component from both sides of
// a cue timing line. Only the seconds component is compared, so a cue that
// spans a minute boundary (59.5 --> 1.0) reads as non-positive and is not
// counted. That costs at most one indicator per minute of audio, which the
// threshold absorbs; classifying existing caption files must keep giving the
// same answer, so do not switch this to a full timestamp parse.
func parseCueInterval(line string) (float64, float64, bool) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, okStart := trailingSeconds(parts[0])
	end, okEnd := trailingSeconds(parts[1])
	if !okStart || !okEnd {
		return 0, 0, false
	}
	return start, end, true
}

func trailingSeconds(stamp string) (float64, bool) {
	stamp = strings.TrimSpace(stamp)
	if idx := strings.IndexAny(stamp, " \t"); idx >= 0 {
		stamp = stamp[:idx]
	}
	segments := strings.Split(stamp, ":")
	seconds, err := strconv.ParseFloat(segments[len(segments)-1], 64)
	if err != nil {
		return 0, false
	}
	return seconds, true
}
