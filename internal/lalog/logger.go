package lalog

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unicode"
)

const (
	// MaxLogMessageLen is the maximum length memorised for each log message.
	MaxLogMessageLen = 4096
	truncatedLabel   = "...(truncated)..."
)

// MaxLogMessagePerSec is the maximum number of messages per second each
// logger instance will print per actor (e.g. per SMTP session). NewRateLimit
// may stretch the interval to several seconds and multiply the count by the
// same factor. Additional messages from the same actor are dropped.
var MaxLogMessagePerSec = runtime.NumCPU() * 300

// LoggerIDField is a field of Logger's ComponentID; each field gives a
// log entry a clue as to which component instance (e.g. which SMTP
// session) produced it.
type LoggerIDField struct {
	Key   string      // Key is an arbitrary string key.
	Value interface{} // Value is an arbitrary value, converted to string upon printing.
}

// Logger writes rate-limited, component-tagged log messages. It is the
// logging backend every smtpclient component (the client facade, a
// Session, the connect and STARTTLS handlers) routes through instead of
// the bare standard `log` package, tagging each message with the
// session's identity via ComponentID (§4.D's "debug logging"
// requirement of tagging lines with {session_id, user_context}).
type Logger struct {
	ComponentName string          // ComponentName is similar to a class name, or a category name.
	ComponentID   []LoggerIDField // ComponentID comprises key-value pairs that give a log entry a clue as to its origin.

	// initOnce synchronises the logger's lazy rate limiter construction.
	initOnce sync.Once
	// rateLimit throttles the logger to avoid inadvertently spamming stderr.
	rateLimit *RateLimit
}

func (logger *Logger) initialiseOnce() {
	logger.initOnce.Do(func() {
		logger.rateLimit = NewRateLimit(1, MaxLogMessagePerSec, logger)
	})
}

// getComponentIDs returns a string consisting of the logger's component ID fields, or an empty string if there are none.
func (logger *Logger) getComponentIDs() string {
	var msg bytes.Buffer
	if len(logger.ComponentID) > 0 {
		msg.WriteRune('[')
		for i, field := range logger.ComponentID {
			msg.WriteString(fmt.Sprintf("%s=%v", field.Key, field.Value))
			if i < len(logger.ComponentID)-1 {
				msg.WriteRune(';')
			}
		}
		msg.WriteRune(']')
	}
	return msg.String()
}

// Format composes a log message and returns it, but does not print it.
func (logger *Logger) Format(functionName string, actorName interface{}, err error, template string, values ...interface{}) string {
	// Message looks like:
	// ComponentName[IDKey1=IDVal1;IDKey2=IDVal2].FunctionName(actorName): Error "no such file" - failed to start component
	var msg bytes.Buffer
	if logger.ComponentName != "" {
		msg.WriteString(logger.ComponentName)
	}
	msg.WriteString(logger.getComponentIDs())
	if functionName != "" {
		if msg.Len() > 0 {
			msg.WriteRune('.')
		}
		msg.WriteString(functionName)
	}
	if actorName != "" {
		msg.WriteString(fmt.Sprintf("(%v)", actorName))
	}
	if msg.Len() > 0 {
		msg.WriteString(": ")
	}
	if err != nil {
		msg.WriteString(fmt.Sprintf("Error \"%v\"", err))
		if template != "" {
			msg.WriteString(" - ")
		}
	}
	msg.WriteString(fmt.Sprintf(template, values...))
	return LintString(TruncateString(msg.String(), MaxLogMessageLen), MaxLogMessageLen)
}

func callerName(skip int) string {
	pc, file, _, ok := runtime.Caller(skip)
	if !ok {
		file = "?"
	}
	fun := runtime.FuncForPC(pc)
	var funName string
	if fun == nil {
		funName = "?"
	} else {
		funName = strings.TrimLeft(filepath.Ext(fun.Name()), ".")
	}
	return filepath.Base(file) + ":" + funName
}

// warning honours the logger's per-actor rate limit, printing the
// message when it is not throttled. logIfLimitHit is false: reporting
// a tripped limit would call back into this same logger while
// RateLimit.Add still holds its counter lock, deadlocking it.
func (logger *Logger) warning(funcName string, actorName interface{}, err error, template string, values ...interface{}) {
	if !logger.rateLimit.Add(fmt.Sprint(actorName), false) {
		return
	}
	log.Print(logger.Format(funcName, actorName, err, template, values...))
}

// Warning prints a log message tagged with the caller's function name.
func (logger *Logger) Warning(actorName interface{}, err error, template string, values ...interface{}) {
	logger.initialiseOnce()
	logger.warning(callerName(2), actorName, err, template, values...)
}

func (logger *Logger) info(funcName string, actorName interface{}, err error, template string, values ...interface{}) {
	if err != nil {
		// A log message that carries an error is promoted to a warning.
		logger.warning(funcName, actorName, err, template, values...)
		return
	}
	if !logger.rateLimit.Add(fmt.Sprint(actorName), false) {
		return
	}
	log.Print(logger.Format(funcName, actorName, err, template, values...))
}

// Info prints a log message tagged with the caller's function name. If
// err is non-nil, the message is printed as a warning instead.
func (logger *Logger) Info(actorName interface{}, err error, template string, values ...interface{}) {
	logger.initialiseOnce()
	logger.info(callerName(2), actorName, err, template, values...)
}

// DefaultLogger is used by a RateLimit that was not given a dedicated logger.
var DefaultLogger = &Logger{ComponentName: "default", ComponentID: []LoggerIDField{{"PID", os.Getpid()}}}

/*
TruncateString returns the input string as-is if it is less than or equal to the desired length. Otherwise, it removes
text from the middle of the string to fit the desired length, substituting the removed portion with
"...(truncated)..." before returning. If maxLength is no longer than that label, it returns just the first maxLength
bytes instead.
*/
func TruncateString(in string, maxLength int) string {
	if maxLength < 0 {
		maxLength = 0
	}
	if len(in) > maxLength {
		if maxLength <= len(truncatedLabel) {
			return in[:maxLength]
		}
		// Grab the beginning and end of the string
		firstHalfEnd := maxLength/2 - len(truncatedLabel)/2
		secondHalfBegin := len(in) - (maxLength / 2) + len(truncatedLabel)/2
		if maxLength%2 == 0 {
			secondHalfBegin++
		}
		var truncatedMsg bytes.Buffer
		truncatedMsg.WriteString(in[:firstHalfEnd])
		truncatedMsg.WriteString(truncatedLabel)
		truncatedMsg.WriteString(in[secondHalfBegin:])
		return truncatedMsg.String()
	}
	return in
}

/*
LintString returns a copy of the input string with unusual characters (such as non-printable characters and record
separators, which an SMTP peer's reply text should never legitimately contain) replaced by an underscore.
Consequently, printable characters such as CJK languages are also replaced. The string is capped to maxLength.
*/
func LintString(in string, maxLength int) string {
	if maxLength < 0 {
		maxLength = 0
	}
	var cleanedResult bytes.Buffer
	for i, r := range in {
		if i >= maxLength {
			break
		}
		if (r >= 0 && r <= 8) || // Skip NUL...Backspace
			(r >= 14 && r <= 31) || // Skip ShiftOut..UnitSeparator
			(r >= 127) || // Skip those beyond ASCII table
			(!unicode.IsPrint(r) && !unicode.IsSpace(r)) { // Skip non-printable
			cleanedResult.WriteRune('_')
		} else {
			cleanedResult.WriteRune(r)
		}
	}
	return cleanedResult.String()
}
