package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rivo/tview"
)

type Types int

const (
	Info Types = iota
	Error
	Warn
	Fatal
)

type Message struct {
	Timestamp time.Time
	Tag       string
	Message   string
	LogTypes  Types
}

// Options configures the process wide log sinks.
type Options struct {
	Dev     bool
	LogPath string
	// View is the debug console. When set it takes every line, otherwise
	// errors and warnings (and everything in dev mode) go to Stderr.
	View   *tview.TextView
	Stderr io.Writer
}

type manager struct {
	view    *tview.TextView
	dev     bool
	stderr  *log.Logger
	logFile *os.File
	logChan chan Message
	done    chan struct{}
}

type Logger struct {
	tag string
}

var (
	logManager *manager
	mu         sync.RWMutex
)

func InitLogger(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if logManager != nil {
		return nil
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	m := &manager{
		view:   opts.View,
		dev:    opts.Dev,
		stderr: log.New(stderr, "", log.LstdFlags),
	}

	if opts.LogPath != "" {
		timestamp := time.Now().Format("20060102_150405")
		fileName := fmt.Sprintf("sagan_log_%s.log", timestamp)
		filePath := filepath.Join(opts.LogPath, fileName)

		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		m.logFile = file
		m.logChan = make(chan Message, 100)
		m.done = make(chan struct{})
		go m.processLogs()
	}

	logManager = m
	return nil
}

// SetView redirects output to the given console. Used once the UI exists.
func SetView(view *tview.TextView) {
	mu.Lock()
	defer mu.Unlock()
	if logManager != nil {
		logManager.view = view
	}
}

func NewLogger(tag string) *Logger {
	return &Logger{tag: tag}
}

func (m *manager) processLogs() {
	defer close(m.done)
	for msg := range m.logChan {
		timestamp := msg.Timestamp.Format("2006-01-02 15:04:05")
		logMessage := fmt.Sprintf("%s [%s] %s: %s\n", timestamp, msg.Tag, msg.LogTypes.toString(), msg.Message)
		m.logFile.WriteString(logMessage)
	}
}

func (l *Logger) log(logTypes Types, message string) {
	mu.RLock()
	if logManager == nil {
		mu.RUnlock()
		if err := InitLogger(Options{}); err != nil {
			log.Println(err)
		}
		mu.RLock()
	}
	defer mu.RUnlock()
	m := logManager
	if m == nil {
		return
	}

	switch {
	case m.view != nil:
		var format string
		switch logTypes {
		case Info:
			format = "[green]DEBUG (%s): %s[-]\n"
		case Warn:
			format = "[yellow]DEBUG (%s): %s[-]\n"
		default:
			format = "[red]DEBUG (%s): %s[-]\n"
		}
		fmt.Fprintf(m.view, format, l.tag, tview.Escape(message))
	case m.dev || logTypes != Info:
		m.stderr.Printf("[%s] %s: %s", l.tag, logTypes.toString(), message)
	}

	if m.logChan != nil {
		m.logChan <- Message{
			Timestamp: time.Now(),
			Tag:       l.tag,
			Message:   message,
			LogTypes:  logTypes,
		}
	}
}

func (l *Logger) Info(v ...interface{}) {
	l.log(Info, sprint(v...))
}

func (l *Logger) Error(v ...interface{}) {
	l.log(Error, sprint(v...))
}

func (l *Logger) Warn(v ...interface{}) {
	l.log(Warn, sprint(v...))
}

func (l *Logger) Fatal(v ...interface{}) {
	l.log(Fatal, sprint(v...))
	Close()
	os.Exit(1)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.log(Info, fmt.Sprintf(format, v...))
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.log(Warn, fmt.Sprintf(format, v...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.log(Error, fmt.Sprintf(format, v...))
}

// Writer adapts the logger for libraries that log to an io.Writer, one Info line per write.
func (l *Logger) Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		l.Info(strings.TrimRight(string(p), "\n"))
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// Close flushes and closes the log file. Loggers keep working afterwards on the remaining sinks.
func Close() {
	mu.Lock()
	m := logManager
	logManager = nil
	if m == nil || m.logChan == nil {
		mu.Unlock()
		return
	}
	close(m.logChan)
	mu.Unlock()

	<-m.done
	m.logFile.Close()
}

// sprint joins values with spaces, the way the log lines have always read.
func sprint(v ...interface{}) string {
	return strings.TrimSuffix(fmt.Sprintln(v...), "\n")
}

func (t Types) toString() string {
	switch t {
	case Info:
		return "INFO"
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
