package webserve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"
	"time"
)

// loggerLevel is the level of a Logger entry.
type loggerLevel uint8

// logger levels
const (
	lvlDebug loggerLevel = iota
	lvlInfo
	lvlWarn
	lvlError
)

// Logger logs diagnostic information produced while parsing, dispatching,
// and composing requests.
//
// A Logger is a plain value rather than a package-level singleton (Start
// creates one per server and hands it to every ConnConfig and ResourceCache
// it builds), so an application embedding this package can run several
// independently.
type Logger struct {
	// Enabled gates all logging. Default false (see NewLogger).
	Enabled bool

	// Format is a teacher-style "${name}" template for the line prefix.
	// Recognized vars: time_rfc3339, level.
	Format string

	Output io.Writer

	template   *template.Template
	bufferPool *sync.Pool
	mutex      sync.Mutex
	levels     []string
}

// NewLogger returns a pointer of a new instance of the Logger, writing to
// os.Stderr and disabled by default.
func NewLogger() *Logger {
	return &Logger{
		Format: `${time_rfc3339} [${level}]`,
		Output: os.Stderr,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 256))
			},
		},
		levels: []string{"DEBUG", "INFO", "WARN", "ERROR"},
	}
}

// Debug prints the DEBUG level log info with the provided type i.
func (l *Logger) Debug(i ...interface{}) { l.log(lvlDebug, "", i...) }

// Debugf prints the DEBUG level log info in the format with the provided args.
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(lvlDebug, format, args...) }

// Info prints the INFO level log info with the provided type i.
func (l *Logger) Info(i ...interface{}) { l.log(lvlInfo, "", i...) }

// Infof prints the INFO level log info in the format with the provided args.
func (l *Logger) Infof(format string, args ...interface{}) { l.log(lvlInfo, format, args...) }

// Warn prints the WARN level log info with the provided type i.
func (l *Logger) Warn(i ...interface{}) { l.log(lvlWarn, "", i...) }

// Warnf prints the WARN level log info in the format with the provided args.
func (l *Logger) Warnf(format string, args ...interface{}) { l.log(lvlWarn, format, args...) }

// Error prints the ERROR level log info with the provided type i.
func (l *Logger) Error(i ...interface{}) { l.log(lvlError, "", i...) }

// Errorf prints the ERROR level log info in the format with the provided args.
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(lvlError, format, args...) }

// Printj prints m in JSON format, bypassing the level/format machinery.
func (l *Logger) Printj(m map[string]interface{}) {
	if l == nil || !l.Enabled {
		return
	}
	json.NewEncoder(l.Output).Encode(m)
}

// log prints the lvl level log info in the format with the args.
func (l *Logger) log(lvl loggerLevel, format string, args ...interface{}) {
	if l == nil || !l.Enabled {
		return
	}

	if l.template == nil {
		l.template = template.Must(
			template.New("logger").Parse(expandLoggerVars(l.Format)),
		)
	}

	message := ""
	if format == "" {
		message = fmt.Sprint(args...)
	} else {
		message = fmt.Sprintf(format, args...)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	buf := l.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		l.bufferPool.Put(buf)
	}()

	data := map[string]interface{}{
		"time_rfc3339": time.Now().Format(time.RFC3339),
		"level":        l.levels[lvl],
	}

	if err := l.template.Execute(buf, data); err == nil {
		buf.WriteByte(' ')
		buf.WriteString(message)
		buf.WriteByte('\n')
		l.Output.Write(buf.Bytes())
	}
}

// expandLoggerVars rewrites "${name}" placeholders into text/template's
// "{{.name}}" syntax, so Format can use the shorter "${name}" notation.
func expandLoggerVars(format string) string {
	buf := &bytes.Buffer{}
	for i := 0; i < len(format); i++ {
		if format[i] == '$' && i+1 < len(format) && format[i+1] == '{' {
			end := i + 2
			for end < len(format) && format[end] != '}' {
				end++
			}
			if end < len(format) {
				buf.WriteString("{{.")
				buf.WriteString(format[i+2 : end])
				buf.WriteString("}}")
				i = end
				continue
			}
		}
		buf.WriteByte(format[i])
	}
	return buf.String()
}
