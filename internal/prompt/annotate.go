// Package prompt assembles bounded, time-aware context windows from stored
// chat history. Everything here is a pure transform over in-memory slices;
// storage access happens only through the Builder's HistorySource.
package prompt

import (
	"fmt"
	"math"
	"time"

	"github.com/telence/telence-go/internal/history"
	"github.com/telence/telence-go/internal/llm"
)

const absoluteTimeLayout = "2006-01-02 15:04"

// Turns maps messages onto chat turns: assistant messages keep bare content,
// human messages are prefixed with the sender's name.
func Turns(msgs []history.Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, llm.Turn{Role: turnRole(m), Content: turnContent(m)})
	}
	return turns
}

// Annotate maps messages onto chat turns, prefixing a turn with a relative
// plus absolute time marker whenever at least threshold elapsed since the
// previous message. The first message never gets a marker.
func Annotate(msgs []history.Message, threshold time.Duration) []llm.Turn {
	turns := make([]llm.Turn, 0, len(msgs))
	for i, m := range msgs {
		content := turnContent(m)
		if i > 0 {
			if marker := gapMarker(msgs[i-1].Timestamp, m.Timestamp, threshold); marker != "" {
				content = marker + " " + content
			}
		}
		turns = append(turns, llm.Turn{Role: turnRole(m), Content: content})
	}
	return turns
}

func turnRole(m history.Message) llm.Role {
	if m.FromAssistant() {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}

func turnContent(m history.Message) string {
	if m.FromAssistant() {
		return m.Text
	}
	return m.Username + ": " + m.Text
}

// gapMarker renders "(3 hours ago; 2024-01-02 15:04)" for gaps at or above
// threshold, and "" below it.
func gapMarker(prev, cur time.Time, threshold time.Duration) string {
	if cur.Sub(prev) < threshold {
		return ""
	}
	return fmt.Sprintf("(%s; %s)", relativeGap(prev, cur), cur.Format(absoluteTimeLayout))
}

// relativeGap picks the unit from the raw gap (minutes under an hour, hours
// under a day, days otherwise) and rounds to the nearest whole value. A gap
// rounding to exactly one day renders as "Yesterday" when the previous
// message's calendar date is literally the day before.
func relativeGap(prev, cur time.Time) string {
	gap := cur.Sub(prev)
	switch {
	case gap < time.Hour:
		return withUnit(int(math.Round(gap.Minutes())), "minute") + " ago"
	case gap < 24*time.Hour:
		return withUnit(int(math.Round(gap.Hours())), "hour") + " ago"
	default:
		days := int(math.Round(gap.Hours() / 24))
		if days == 1 && isYesterday(prev, cur) {
			return "Yesterday"
		}
		return withUnit(days, "day") + " ago"
	}
}

func withUnit(value int, unit string) string {
	if value > 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", value, unit)
}

func isYesterday(prev, cur time.Time) bool {
	py, pm, pd := prev.Date()
	cy, cm, cd := cur.AddDate(0, 0, -1).Date()
	return py == cy && pm == cm && pd == cd
}
