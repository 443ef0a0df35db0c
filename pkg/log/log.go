// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package log

// API inspired by zerolog https://github.com/rs/zerolog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Level defines log level.
type Level uint8

// Logging constants, matching ffmpeg.
const (
	LevelError   Level = 16
	LevelWarning Level = 24
	LevelInfo    Level = 32
	LevelDebug   Level = 48
)

var levelNames = map[Level]string{
	LevelError:   "error",
	LevelWarning: "warning",
	LevelInfo:    "info",
	LevelDebug:   "debug",
}

func (l Level) String() string {
	if name, exist := levelNames[l]; exist {
		return name
	}
	return "unknown"
}

// ErrUnknownLevel unknown log level.
var ErrUnknownLevel = errors.New("unknown log level")

// ParseLevel returns the level for a name.
func ParseLevel(name string) (Level, error) {
	for level, n := range levelNames {
		if n == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

// UnixMicro microseconds since the unix epoch.
type UnixMicro uint64

// Event defines log event.
type Event struct {
	level Level
	time  UnixMicro // Timestamp.
	src   string    // Source.
	track string    // Source track.

	logger *Logger
}

// Log defines log entry.
type Log struct {
	Level Level
	Time  UnixMicro // Timestamp.
	Msg   string    // Message
	Src   string    // Source.
	Track string    // Source track.
}

// Src sets event source.
func (e *Event) Src(source string) *Event {
	e.src = source
	return e
}

// Track sets event track.
func (e *Event) Track(track string) *Event {
	e.track = track
	return e
}

// Time sets event time.
func (e *Event) Time(t time.Time) *Event {
	e.time = UnixMicro(t.UnixNano() / 1000)
	return e
}

// Msg sends the *Event with msg added as the message field.
func (e *Event) Msg(msg string) {
	l := e.logger
	if l.feed == nil || e.level > l.level {
		return
	}
	select {
	case <-l.started:
	default:
		return
	}

	log := Log{
		Time:  e.time,
		Level: e.level,
		Msg:   msg,
		Src:   e.src,
		Track: e.track,
	}

	select {
	case l.feed <- log:
	case <-l.done:
	}
}

// Msgf sends the event with formatted msg added as the message field.
func (e *Event) Msgf(format string, v ...interface{}) {
	e.Msg(fmt.Sprintf(format, v...))
}

// ILogger interface.
type ILogger interface {
	Error() *Event
	Warn() *Event
	Info() *Event
	Debug() *Event
}

// Feed defines feed of logs.
type Feed <-chan Log
type logFeed chan Log

// Logger logs.
type Logger struct {
	level Level

	feed  logFeed      // feed of logs.
	sub   chan logFeed // subscribe requests.
	unsub chan logFeed // unsubscribe requests.

	started chan struct{}
	done    chan struct{}
}

// NewLogger returns a Logger that drops events above level.
// Events sent before Start is called are dropped.
func NewLogger(level Level) *Logger {
	return &Logger{
		level: level,

		feed:  make(logFeed),
		sub:   make(chan logFeed),
		unsub: make(chan logFeed),

		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// NewMockLogger returns a logger that discards all events.
func NewMockLogger() *Logger {
	return &Logger{}
}

// Start logger, blocks until ctx is canceled.
func (l *Logger) Start(ctx context.Context) {
	close(l.started)
	subs := map[logFeed]struct{}{}
	for {
		select {
		case <-ctx.Done():
			close(l.done)
			for ch := range subs {
				close(ch)
			}
			return

		case ch := <-l.sub:
			subs[ch] = struct{}{}

		case ch := <-l.unsub:
			close(ch)
			delete(subs, ch)

		case msg := <-l.feed:
			for ch := range subs {
				ch <- msg
			}
		}
	}
}

// CancelFunc cancels log feed subsciption.
type CancelFunc func()

// Subscribe returns a new chan with log feed and a CancelFunc.
func (l *Logger) Subscribe() (<-chan Log, CancelFunc) {
	feed := make(logFeed)
	select {
	case l.sub <- feed:
	case <-l.done:
		close(feed)
		return feed, func() {}
	}

	cancel := func() {
		l.unSubscribe(feed)
	}
	return feed, cancel
}

func (l *Logger) unSubscribe(feed logFeed) {
	// Read feed until unsub request is accepted.
	for {
		select {
		case l.unsub <- feed:
			return
		case _, ok := <-feed:
			if !ok {
				return
			}
		case <-l.done:
			return
		}
	}
}

// LogToStdout prints log feed to Stdout.
func (l *Logger) LogToStdout(ctx context.Context) {
	l.LogToWriter(ctx, os.Stdout)
}

// LogToWriter prints log feed to w.
func (l *Logger) LogToWriter(ctx context.Context, w io.Writer) {
	feed, cancel := l.Subscribe()
	defer cancel()
	for {
		select {
		case log, ok := <-feed:
			if !ok {
				return
			}
			fmt.Fprintln(w, formatLog(log))
		case <-ctx.Done():
			return
		}
	}
}

func formatLog(log Log) string {
	var output string

	switch log.Level {
	case LevelError:
		output += "[ERROR] "
	case LevelWarning:
		output += "[WARNING] "
	case LevelInfo:
		output += "[INFO] "
	case LevelDebug:
		output += "[DEBUG] "
	}

	if log.Track != "" {
		output += log.Track + ": "
	}
	if log.Src != "" {
		output += log.Src + ": "
	}

	return output + log.Msg
}

func (l *Logger) newEvent(level Level) *Event {
	return &Event{
		level:  level,
		time:   UnixMicro(time.Now().UnixNano() / 1000),
		logger: l,
	}
}

// Error starts a new message with error level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Error() *Event {
	return l.newEvent(LevelError)
}

// Warn starts a new message with warn level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Warn() *Event {
	return l.newEvent(LevelWarning)
}

// Info starts a new message with info level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Info() *Event {
	return l.newEvent(LevelInfo)
}

// Debug starts a new message with debug level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Debug() *Event {
	return l.newEvent(LevelDebug)
}
