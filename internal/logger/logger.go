// Package logger writes structured JSON log lines through the gommon logger
// that echo uses, masking credential fields before they are written.
package logger

import (
    "encoding/json"
    "io"
    "os"
    "strings"

    "github.com/labstack/gommon/log"
)

// Fields carries structured context for a log line.
type Fields map[string]any

var std = newLogger(os.Stdout)

var sensitiveKeys = map[string]struct{}{
    "password":      {},
    "oldpassword":   {},
    "newpassword":   {},
    "passwordhash":  {},
    "token":         {},
    "accesstoken":   {},
    "authorization": {},
}

func newLogger(w io.Writer) *log.Logger {
    l := log.New("ebank")
    l.SetOutput(w)
    l.SetHeader(`{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}"}`)
    l.SetLevel(log.INFO)
    return l
}

// SetOutput redirects all log output, mostly for tests.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// SetDebug toggles debug level output.
func SetDebug(on bool) {
    if on {
        std.SetLevel(log.DEBUG)
        return
    }
    std.SetLevel(log.INFO)
}

// Logger exposes the underlying gommon logger so echo can share it.
func Logger() *log.Logger { return std }

func Debug(message string, fields Fields) {
    std.Debugj(entry(message, fields))
}

func Info(message string, fields Fields) {
    std.Infoj(entry(message, fields))
}

func Warn(message string, fields Fields) {
    std.Warnj(entry(message, fields))
}

func Error(message string, err error, fields Fields) {
    j := entry(message, fields)
    if err != nil {
        j["error"] = err.Error()
    }
    std.Errorj(j)
}

func entry(message string, fields Fields) log.JSON {
    j := log.JSON{"message": message}
    for k, v := range sanitize(fields) {
        j[k] = v
    }
    return j
}

// SanitizePayload returns a JSON-shaped copy of payload with sensitive
// values replaced by asterisks.
func SanitizePayload(payload any) any {
    raw, err := json.Marshal(payload)
    if err != nil {
        return "<unavailable>"
    }
    var data any
    if err := json.Unmarshal(raw, &data); err != nil {
        return "<unavailable>"
    }
    return sanitizeValue(data)
}

func sanitize(fields Fields) map[string]any {
    out := make(map[string]any, len(fields))
    for k, v := range fields {
        if isSensitiveKey(k) {
            out[k] = "******"
            continue
        }
        out[k] = v
    }
    return out
}

func sanitizeValue(value any) any {
    switch typed := value.(type) {
    case map[string]any:
        out := make(map[string]any, len(typed))
        for key, inner := range typed {
            if isSensitiveKey(key) {
                out[key] = "******"
                continue
            }
            out[key] = sanitizeValue(inner)
        }
        return out
    case []any:
        out := make([]any, 0, len(typed))
        for _, item := range typed {
            out = append(out, sanitizeValue(item))
        }
        return out
    default:
        return value
    }
}

func isSensitiveKey(key string) bool {
    normalized := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(strings.TrimSpace(key)))
    _, ok := sensitiveKeys[normalized]
    return ok
}
