// Package filter decides which game chat lines are worth translating.
package filter

import "github.com/iarcanar99/MBB-Dalamud-sub001/domain"

// Chat codes the plugin forwards. Values follow the game's chat type ids;
// 71 and 72 are plugin-assigned for cutscene subtitles and battle talk.
const (
	ChatSystemMessage          = 57
	ChatSystemError            = 58
	ChatGatheringSystemMessage = 59
	ChatErrorMessage           = 60
	ChatNPCDialogue            = 61
	ChatNPCAnnouncement        = 68
	ChatCutsceneSubtitle       = 71
	ChatBattleTalk             = 72
)

var blocked = map[int]struct{}{
	ChatSystemMessage:          {},
	ChatSystemError:            {},
	ChatGatheringSystemMessage: {},
	ChatErrorMessage:           {},
	// combat log
	2091:  {},
	2105:  {},
	2107:  {},
	2218:  {},
	2233:  {},
	2857:  {},
	2874:  {},
	4139:  {},
	4398:  {},
	8235:  {},
	10283: {},
}

var allowed = map[int]struct{}{
	ChatNPCDialogue:      {},
	ChatNPCAnnouncement:  {},
	ChatCutsceneSubtitle: {},
	ChatBattleTalk:       {},
}

// ShouldTranslate reports whether a line with the given chat code and
// category should be sent for translation. Blocked codes always lose.
// Unknown codes are translated: a missed dialogue line costs more than a
// stray system line.
func ShouldTranslate(chatCode int, category string) bool {
	if _, ok := blocked[chatCode]; ok {
		return false
	}
	if _, ok := allowed[chatCode]; ok {
		return true
	}
	if category == domain.CategoryCutscene {
		return true
	}
	return true
}

// Blocked reports whether code is a known noisy chat code
func Blocked(code int) bool {
	_, ok := blocked[code]
	return ok
}

// Allowed reports whether code is a known dialogue chat code
func Allowed(code int) bool {
	_, ok := allowed[code]
	return ok
}

// Allow is ShouldTranslate applied to a decoded event
func Allow(event domain.IngestEvent) bool {
	return ShouldTranslate(event.ChatCode, event.Category)
}
