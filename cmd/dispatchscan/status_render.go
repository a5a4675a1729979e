package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dispatchscan/internal/pipeline"
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
	statusLabelWidth = 14
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
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
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func feedbackStatus(kind pipeline.Kind) statusKind {
	switch kind {
	case pipeline.KindSuccess:
		return statusOK
	case pipeline.KindWarning, pipeline.KindInput, pipeline.KindBusy:
		return statusWarn
	case pipeline.KindFailure:
		return statusError
	default:
		return statusInfo
	}
}

func renderFeedback(fb pipeline.Feedback, colorize bool) string {
	label := fb.RawText
	if label == "" {
		label = string(fb.Kind)
	}
	message := fb.Message
	if fb.Record != nil && fb.Record.ID != 0 {
		message = fmt.Sprintf("%s (record %d)", message, fb.Record.ID)
	}
	return renderStatusLine(label, feedbackStatus(fb.Kind), message, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

// channelTitle renders a channel name for headers, e.g. "flipkart" as "Flipkart".
func channelTitle(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "no channel"
	}
	return cases.Title(language.Und).String(name)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
