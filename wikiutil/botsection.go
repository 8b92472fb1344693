package wikiutil

import "strings"

// BotSectionBegin and BotSectionEnd delimit the portion of a page a bot is
// allowed to rewrite, leaving the rest of the page (manually maintained
// prose around it) untouched.
const (
	BotSectionBegin = "<!-- Section générée par bot, début -->"
	BotSectionEnd   = "<!-- Section générée par bot, fin -->"
)

// ReadBotSection returns the content strictly between the first pair of
// BotSectionBegin/BotSectionEnd markers in code, or "" if no well-formed
// pair is present.
func ReadBotSection(code string) string {
	begin := strings.Index(code, BotSectionBegin)
	if begin < 0 {
		return ""
	}
	begin += len(BotSectionBegin)
	end := strings.Index(code[begin:], BotSectionEnd)
	if end < 0 {
		return ""
	}
	return strings.Trim(code[begin:begin+end], "\n")
}

// ReplaceBotSection rewrites the content between the first pair of
// BotSectionBegin/BotSectionEnd markers in code with newSection. If code has
// no such pair, the markers and newSection are appended at the end of the
// page, separated from any existing content by a blank line.
func ReplaceBotSection(code, newSection string) string {
	begin := strings.Index(code, BotSectionBegin)
	if begin >= 0 {
		contentStart := begin + len(BotSectionBegin)
		end := strings.Index(code[contentStart:], BotSectionEnd)
		if end >= 0 {
			contentEnd := contentStart + end
			return code[:contentStart] + "\n" + newSection + "\n" + code[contentEnd:]
		}
	}
	section := BotSectionBegin + "\n" + newSection + "\n" + BotSectionEnd
	if code == "" {
		return section
	}
	return strings.TrimRight(code, "\n") + "\n\n" + section
}
