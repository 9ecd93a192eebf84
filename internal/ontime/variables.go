package ontime

import (
	"strconv"

	"github.com/stagekit/ontime-bridge/internal/timefmt"
)

// Feedback indicator names re-evaluated after every state snapshot.
const (
	FeedbackStateRunning          = "state_running"
	FeedbackStatePaused           = "state_paused"
	FeedbackStateStopped          = "state_stopped"
	FeedbackStateRolling          = "state_rolling"
	FeedbackTimerNegative         = "timer_negative"
	FeedbackOnAir                 = "onair"
	FeedbackSpeakerMessageVisible = "speaker_message_visible"
	FeedbackPublicMessageVisible  = "public_message_visible"
	FeedbackLowerMessageVisible   = "lower_message_visible"
)

// FeedbackNames returns every feedback indicator the bridge maintains.
func FeedbackNames() []string {
	return []string{
		FeedbackStateRunning,
		FeedbackStatePaused,
		FeedbackStateStopped,
		FeedbackStateRolling,
		FeedbackTimerNegative,
		FeedbackOnAir,
		FeedbackSpeakerMessageVisible,
		FeedbackPublicMessageVisible,
		FeedbackLowerMessageVisible,
	}
}

// BuildVariables maps a state snapshot to the display variables published
// on the host surface. Absent timer fields render as 00:00:00 so displays
// never show stale values between events.
func BuildVariables(s *State) map[string]string {
	current := msOrZero(s.Timer.Current)
	h, m, sec := timefmt.Split(current)

	return map[string]string{
		"time":    timefmt.Format(current),
		"time_hm": timefmt.FormatHM(current),
		"time_h":  strconv.FormatInt(h, 10),
		"time_m":  strconv.FormatInt(m, 10),
		"time_s":  strconv.FormatInt(sec, 10),

		"clock":        timefmt.Format(s.Timer.Clock),
		"timer_start":  timefmt.Format(msOrZero(s.Timer.StartedAt)),
		"timer_finish": timefmt.Format(msOrZero(s.Timer.ExpectedFinish)),
		"timer_delay":  timefmt.Format(s.Timer.AddedTime),

		"playback": s.Playback,
		"onair":    strconv.FormatBool(s.OnAir),
		"negative": strconv.FormatBool(s.TimeIsNegative()),

		"title":     s.Titles.TitleNow,
		"subtitle":  s.Titles.SubtitleNow,
		"presenter": s.Titles.PresenterNow,
		"note":      s.Titles.NoteNow,

		"title_next":     s.Titles.TitleNext,
		"subtitle_next":  s.Titles.SubtitleNext,
		"presenter_next": s.Titles.PresenterNext,
		"note_next":      s.Titles.NoteNext,

		"speaker_message": s.TimerMessage.Text,
		"public_message":  s.PublicMessage.Text,
		"lower_message":   s.LowerMessage.Text,
	}
}

func msOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
