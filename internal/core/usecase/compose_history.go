package usecase

import (
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

const (
	historyWindowSize  = 12
	recentVerbatim     = 4
	recentCharLimit    = 800
	olderCharLimit     = 300
	topicSummaryCutoff = 6
)

// historyWindow converts the persisted conversation into chat messages. It
// keeps the last 12 messages, the most recent 4 at up to 800 chars and the
// rest at up to 300. Once the history grows past summaryAfter messages a
// one-line topic summary is prepended so dropped turns stay visible.
func historyWindow(history []domain.ConversationMessage, summaryAfter int) []ports.ChatMessage {
	if len(history) == 0 {
		return nil
	}
	if summaryAfter <= 0 {
		summaryAfter = topicSummaryCutoff
	}

	window := history
	if len(window) > historyWindowSize {
		window = window[len(window)-historyWindowSize:]
	}

	out := make([]ports.ChatMessage, 0, len(window)+1)
	if len(history) > summaryAfter {
		if summary := topicSummary(history); summary != "" {
			out = append(out, ports.ChatMessage{Role: "system", Content: summary})
		}
	}

	recentFrom := len(window) - recentVerbatim
	for i, msg := range window {
		limit := olderCharLimit
		if i >= recentFrom {
			limit = recentCharLimit
		}
		out = append(out, ports.ChatMessage{
			Role:    msg.Role,
			Content: truncateRunes(msg.Content, limit),
		})
	}
	return out
}

// topicSummary scans user turns for axis keywords and names the dominant
// topics in one line.
func topicSummary(history []domain.ConversationMessage) string {
	counts := make(map[domain.Axis]int)
	for _, msg := range history {
		if msg.Role != "user" {
			continue
		}
		tokens := toTokenSet(msg.Content)
		lower := strings.ToLower(msg.Content)
		for axis, words := range axisKeywords {
			for _, w := range words {
				if _, ok := tokens[w]; ok {
					counts[axis]++
					break
				}
				if strings.Contains(lower, w) {
					counts[axis]++
					break
				}
			}
		}
	}
	if len(counts) == 0 {
		return ""
	}

	var top []domain.Axis
	for _, axis := range domain.Axes {
		if counts[axis] > 0 {
			top = append(top, axis)
		}
	}
	// keep the two most frequent, order stable by the axis enum
	for len(top) > 2 {
		weakest := 0
		for i := 1; i < len(top); i++ {
			if counts[top[i]] < counts[top[weakest]] {
				weakest = i
			}
		}
		top = append(top[:weakest], top[weakest+1:]...)
	}

	names := make([]string, 0, len(top))
	for _, axis := range top {
		names = append(names, axisTitle(axis))
	}
	return "지난 대화 주제: " + strings.Join(names, ", ")
}
