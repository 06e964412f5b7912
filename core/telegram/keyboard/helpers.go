// Package keyboard builds telebot reply markups from plain button
// descriptions.
package keyboard

import tele "gopkg.in/telebot.v4"

// DataBtn describes an inline button carrying a raw callback payload.
type DataBtn struct {
	Text string
	Data string
}

// RemoveKeyboard returns a markup that hides the keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a reply keyboard from rows of text.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	var kb []tele.Row
	for _, row := range rows {
		var buttons []tele.Btn
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		kb = append(kb, markup.Row(buttons...))
	}
	markup.Reply(kb...)
	return markup
}

// DataRows builds an inline keyboard from rows of DataBtn. Payloads
// are sent verbatim, without the unique-key encoding telebot applies
// to markup.Data buttons.
func DataRows(rows ...[]DataBtn) *tele.ReplyMarkup {
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = tele.InlineButton{Text: btn.Text, Data: btn.Data}
		}
		inline[i] = r
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}

// DataButtons builds an inline keyboard placing each button on its own row.
func DataButtons(buttons []DataBtn) *tele.ReplyMarkup {
	rows := make([][]DataBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []DataBtn{b})
	}
	return DataRows(rows...)
}

// ChunkDataButtons splits a flat list of buttons into rows with up to
// n buttons per row. If n <= 1, every button gets its own row.
func ChunkDataButtons(buttons []DataBtn, n int) [][]DataBtn {
	if n <= 1 {
		out := make([][]DataBtn, 0, len(buttons))
		for _, b := range buttons {
			out = append(out, []DataBtn{b})
		}
		return out
	}
	var rows [][]DataBtn
	for i := 0; i < len(buttons); i += n {
		end := i + n
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[i:end])
	}
	return rows
}
