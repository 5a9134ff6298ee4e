package model

// Reply is one outbound message. ChatID zero means "answer the chat the
// event came from"; non-zero targets another chat (agency, staff).
type Reply struct {
	ChatID         int64
	Text           string
	Keyboard       [][]string
	RemoveKeyboard bool
}

func Text(text string) Reply {
	return Reply{Text: text}
}
