package application

import "strings"

type Answer int

const (
	AnswerUnknown Answer = iota
	AnswerYes
	AnswerNo
)

func (a Answer) String() string {
	switch a {
	case AnswerYes:
		return "yes"
	case AnswerNo:
		return "no"
	default:
		return "unknown"
	}
}

// ParseAnswer reads a reply to the confirmation prompt. Only the exact
// words "sim" and "não" count, after trimming and lower-casing.
func ParseAnswer(text string) Answer {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "sim":
		return AnswerYes
	case "não":
		return AnswerNo
	default:
		return AnswerUnknown
	}
}
