// Package keyboard builds inline keyboards from plain button rows.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is an inline button. Unique picks the callback handler and Data is
// the payload it receives.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Inline lays rows out as an inline keyboard. No rows means no markup.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	m := &tele.ReplyMarkup{}
	m.InlineKeyboard = make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, *m.Data(b.Text, b.Unique, b.Data).Inline())
		}
		m.InlineKeyboard = append(m.InlineKeyboard, line)
	}
	return m
}
