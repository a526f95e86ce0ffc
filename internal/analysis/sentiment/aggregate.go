package sentiment

import (
	"github.com/lcampbell/healing-chat/internal/model/chat"
)

// Aggregate derives a conversation's overall sentiment from its transcript:
// the most frequent resolved emotion label across user messages. Pending
// annotations and the transient sentinels never count, so a conversation
// whose analyses all failed still reads as neutral. Ties go to the label
// that reached the winning count first in message order, which keeps the
// result independent of map iteration order.
func Aggregate(messages []chat.Message) string {
	labels := resolvedLabels(messages)
	if len(labels) == 0 {
		return chat.LabelNeutral
	}

	counts := make(map[string]int, len(labels))
	for _, label := range labels {
		counts[label]++
	}

	best := 0
	for _, count := range counts {
		if count > best {
			best = count
		}
	}

	for _, label := range labels {
		if counts[label] == best {
			return label
		}
	}
	return chat.LabelNeutral
}

func resolvedLabels(messages []chat.Message) []string {
	var labels []string
	for _, msg := range messages {
		if msg.Role != chat.RoleUser || msg.Sentiment == nil || msg.Sentiment.Pending {
			continue
		}
		label := msg.Sentiment.EmotionLabel
		if label == "" || label == chat.LabelError || label == chat.LabelAnalyzing {
			continue
		}
		labels = append(labels, label)
	}
	return labels
}
