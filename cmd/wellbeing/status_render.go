package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"wellbeing/internal/framework"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

var titleCaser = cases.Title(language.Und)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	badge := "[" + statusKindLabel(kind) + "]"
	if message != "" {
		badge += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge)
	if !colorize {
		return line
	}
	return statusKindColor(kind) + line + ansiReset
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiBlue
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		return []string{ansiBlue + line + ansiReset, ansiBlue + rule + ansiReset}
	}
	return []string{line, rule}
}

// connectionState names the manager state in lower case.
func connectionState(st framework.Status) string {
	switch {
	case st.Connecting:
		return "connecting"
	case st.Connected && st.Version > 0:
		return "connected"
	case st.Connected:
		return "bound"
	case st.Resolved:
		return "unavailable"
	default:
		return "pending"
	}
}

// frameworkLine summarizes the connection for the status header.
func frameworkLine(st framework.Status, colorize bool) string {
	state := connectionState(st)
	label := titleCaser.String(state)
	switch state {
	case "connected":
		return renderStatusLine("Framework", statusOK, fmt.Sprintf("%s (version %d)", label, st.Version), colorize)
	case "unavailable":
		return renderStatusLine("Framework", statusWarn, label+"; advanced features disabled", colorize)
	case "connecting", "pending":
		return renderStatusLine("Framework", statusInfo, label, colorize)
	default:
		return renderStatusLine("Framework", statusWarn, label, colorize)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
