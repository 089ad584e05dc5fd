package middleware

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

// ChatLocker serializes handler execution per chat so updates from one chat
// observe each other's session changes in arrival order.
type ChatLocker struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

// NewChatLocker returns an empty locker.
func NewChatLocker() *ChatLocker {
	return &ChatLocker{locks: make(map[int64]*chatLock)}
}

// Lock blocks until the chat is free and returns the matching unlock func.
func (l *ChatLocker) Lock(chatID int64) func() {
	l.mu.Lock()
	cl, ok := l.locks[chatID]
	if !ok {
		cl = &chatLock{}
		l.locks[chatID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, chatID)
		}
		l.mu.Unlock()
	}
}

// Len reports how many chats currently hold or wait for a lock.
func (l *ChatLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// ChatLockMiddleware runs handlers of the same chat one at a time.
// Updates without a chat fall back to the sender id.
func ChatLockMiddleware(l *ChatLocker) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			var key int64
			switch {
			case c.Chat() != nil:
				key = c.Chat().ID
			case c.Sender() != nil:
				key = c.Sender().ID
			default:
				return next(c)
			}
			unlock := l.Lock(key)
			defer unlock()
			return next(c)
		}
	}
}
