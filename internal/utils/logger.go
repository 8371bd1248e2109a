package utils

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	log1 "github.com/charmbracelet/log"
)

var Print = newLogger(os.Stderr)

func newLogger(w io.Writer) *log1.Logger {
	return log1.NewWithOptions(w, log1.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
}

// Init 设置日志级别与各级别样式
func Init(level string) {
	lvl, err := log1.ParseLevel(level)
	if err != nil {
		lvl = log1.InfoLevel
	}
	Print.SetLevel(lvl)

	styles := log1.DefaultStyles()
	styles.Levels[log1.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#90EE9080")).
		Foreground(lipgloss.Color("#006400FF")).Bold(true)

	styles.Levels[log1.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#FF0000FF")).
		Foreground(lipgloss.Color("#00FFFF00")).Bold(true)

	styles.Levels[log1.FatalLevel] = lipgloss.NewStyle().
		SetString("FATAL").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#000000FF")).
		Foreground(lipgloss.Color("#00FFFF00")).Bold(true)

	styles.Levels[log1.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#FFA500FF")).
		Foreground(lipgloss.Color("#000000FF")).Bold(true)
	Print.SetStyles(styles)
}

// Named returns a child logger tagged with the component name.
func Named(component string) *log1.Logger {
	return Print.WithPrefix(component)
}

// Discard is a logger that drops everything; tests use it to keep output quiet.
func Discard() *log1.Logger {
	return newLogger(io.Discard)
}
