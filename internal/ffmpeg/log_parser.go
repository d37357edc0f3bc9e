package ffmpeg

import "strings"

var logLevels = map[string]struct{}{
	"quiet": {}, "panic": {}, "fatal": {}, "error": {}, "warning": {},
	"info": {}, "verbose": {}, "debug": {}, "trace": {},
}

// ParseLogLevel extracts the log level from ffmpeg output produced with
// -loglevel level+info. Lines look like "[info] message" or
// "[component @ 0x...] [level] message"; the component prefix is kept.
func ParseLogLevel(line string) (level, msg string) {
	first, rest, ok := cutBracket(line)
	if !ok {
		return "info", line
	}
	if isLogLevel(first) {
		return first, rest
	}

	second, tail, ok := cutBracket(rest)
	if ok && isLogLevel(second) {
		return second, "[" + first + "] " + tail
	}
	return "info", line
}

// cutBracket splits "[x] rest" into x and rest.
func cutBracket(s string) (inside, rest string, ok bool) {
	if len(s) < 3 || s[0] != '[' {
		return "", s, false
	}
	inside, rest, ok = strings.Cut(s[1:], "] ")
	if !ok {
		return "", s, false
	}
	return inside, rest, true
}

func isLogLevel(s string) bool {
	_, ok := logLevels[s]
	return ok
}
