package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/pipeline"
	"dispatchscan/internal/station"
)

const consoleHelp = `Type or scan a barcode and press enter to submit it.
Commands:
  :channel NAME     lock the session to a sales channel
  :unlock           unlock the channel (asks for confirmation)
  :action ACTION    dispatch or cancel
  :mode MODE        strict or loose validation
  :auto on|off      auto-submit scanner detections
  :awb VALUE        AWB number for the next submission (empty clears)
  :courier VALUE    courier partner for the next submission (empty clears)
  :submit           submit the captured draft
  :next             ready for next scan
  :start / :stop    start or stop the scanner
  :scans            recent scans
  :status           session state
  :help             this help
  :quit             end the session`

// errConfirmationPending reports a second prompt while one is unanswered.
var errConfirmationPending = errors.New("another confirmation is pending")

// console is the interactive operator surface. Lines are read on their own
// goroutine and handled one at a time; a pending prompt consumes the next line
// as its answer. Manual submissions run on the handling goroutine, so a cancel
// confirmation they raise reads its answer from the line channel directly.
type console struct {
	in       io.Reader
	out      io.Writer
	colorize bool
	lines    chan string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending func(answer string)
	closing bool
}

func newConsole(in io.Reader, out io.Writer, colorize bool) *console {
	return &console{in: in, out: out, colorize: colorize, lines: make(chan string)}
}

// Report implements pipeline.Reporter.
func (c *console) Report(fb pipeline.Feedback) {
	c.println(renderFeedback(fb, c.colorize))
}

// ConfirmCancel implements pipeline.Confirmer by asking on the console.
func (c *console) ConfirmCancel(ctx context.Context, raw string, result *dispatch.ValidationResult) (bool, error) {
	answer := make(chan bool, 1)
	if !c.setPending(func(line string) { answer <- isYes(line) }) {
		return false, errConfirmationPending
	}
	prompt := fmt.Sprintf("Cancel order %s?", raw)
	if result != nil && strings.TrimSpace(result.Message) != "" {
		prompt = fmt.Sprintf("%s %s.", prompt, strings.TrimSuffix(strings.TrimSpace(result.Message), "."))
	}
	c.println(prompt + " [y/N]")
	select {
	case ok := <-answer:
		return ok, nil
	case line, open := <-c.lines:
		c.clearPending()
		return open && isYes(line), nil
	case <-ctx.Done():
		c.clearPending()
		return false, ctx.Err()
	}
}

func (c *console) setPending(fn func(string)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil || c.closing {
		return false
	}
	c.pending = fn
	return true
}

func (c *console) takePending() func(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn := c.pending
	c.pending = nil
	return fn
}

func (c *console) clearPending() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

// shutdown declines any open prompt and refuses new ones.
func (c *console) shutdown() {
	c.mu.Lock()
	c.closing = true
	fn := c.pending
	c.pending = nil
	c.mu.Unlock()
	if fn != nil {
		fn("")
	}
}

func (c *console) println(line string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	fmt.Fprintln(c.out, line)
}

// run reads operator input until EOF, :quit, or ctx ends.
func (c *console) run(ctx context.Context, st *station.Station) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		c.shutdown()
		cancel()
	}()

	lines := c.lines
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-runCtx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.printState(st)
	for {
		select {
		case <-runCtx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if c.handle(runCtx, st, line) {
				return nil
			}
		}
	}
}

// handle processes one input line and reports whether the session should end.
func (c *console) handle(ctx context.Context, st *station.Station, line string) bool {
	trimmed := strings.TrimSpace(line)
	if answer := c.takePending(); answer != nil {
		answer(trimmed)
		return false
	}
	if trimmed == "" {
		return false
	}
	if !strings.HasPrefix(trimmed, ":") {
		st.Pipeline().SetDraftText(trimmed)
		st.Pipeline().SubmitDraft(ctx)
		return false
	}

	command, arg, _ := strings.Cut(strings.TrimPrefix(trimmed, ":"), " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(command) {
	case "quit", "q", "exit":
		return true
	case "help", "h", "?":
		c.println(consoleHelp)
	case "channel":
		c.report(st.LockChannel(arg), "Channel locked to "+channelTitle(arg))
		c.printState(st)
	case "unlock":
		c.promptUnlock(st)
	case "action":
		action, err := dispatch.ParseScanAction(arg)
		if err == nil {
			err = st.Session().SetAction(action)
		}
		c.report(err, "Scan action set to "+string(action))
	case "mode":
		mode, err := dispatch.ParseValidationMode(arg)
		if err == nil {
			settings := st.Session().Settings()
			settings.ValidationMode = mode
			err = st.ApplySettings(ctx, settings)
		}
		c.report(err, "Validation mode set to "+string(mode))
	case "auto":
		enabled, err := parseToggle(arg)
		if err == nil {
			settings := st.Session().Settings()
			settings.AutoSubmit = enabled
			err = st.ApplySettings(ctx, settings)
		}
		c.report(err, "Auto-submit "+onOff(enabled))
	case "awb":
		fields := st.Pipeline().Draft().Fields
		fields.AWBNumber = arg
		st.Pipeline().SetFields(fields)
		c.report(nil, "AWB number "+dash(arg))
	case "courier":
		fields := st.Pipeline().Draft().Fields
		fields.CourierPartner = arg
		st.Pipeline().SetFields(fields)
		c.report(nil, "Courier partner "+dash(arg))
	case "submit":
		st.Pipeline().SubmitDraft(ctx)
	case "next":
		if !st.ReadyForNext() {
			c.println(renderStatusLine("next", statusInfo, "Nothing waiting", c.colorize))
		}
	case "start":
		c.report(st.StartCapture(ctx), "Scanner started")
	case "stop":
		st.StopCapture()
		c.report(nil, "Scanner stopped")
	case "scans":
		records := st.RecentScans()
		if len(records) == 0 {
			c.println("No scans yet this session")
			break
		}
		c.println(renderScanTable(records))
	case "status":
		c.printState(st)
	default:
		c.println(renderStatusLine(command, statusWarn, "Unknown command, type :help", c.colorize))
	}
	return false
}

func (c *console) promptUnlock(st *station.Station) {
	channel, locked := st.Session().Channel()
	if !locked {
		c.report(nil, "No channel locked")
		return
	}
	ok := c.setPending(func(answer string) {
		if !isYes(answer) {
			c.report(nil, "Channel kept")
			return
		}
		c.report(st.UnlockChannel(true), "Channel unlocked")
		c.printState(st)
	})
	if !ok {
		c.report(errConfirmationPending, "")
		return
	}
	c.println(fmt.Sprintf("Unlock channel %s? [y/N]", channelTitle(channel)))
}

func (c *console) report(err error, success string) {
	if err != nil {
		c.println(renderStatusLine(dispatch.Category(err), statusError, err.Error(), c.colorize))
		return
	}
	c.println(renderStatusLine("ok", statusOK, success, c.colorize))
}

func (c *console) printState(st *station.Station) {
	status := st.Status()
	snapshot := status.Session
	lines := renderSectionHeader(channelTitle(snapshot.Channel), c.colorize)
	lines = append(lines,
		fmt.Sprintf("%saction %s | mode %s | auto-submit %s | scanner %s | today %d",
			statusIndent,
			snapshot.Action,
			snapshot.Settings.ValidationMode,
			onOff(snapshot.Settings.AutoSubmit),
			status.Capture,
			status.TodayCount,
		),
	)
	if status.AwaitingNext {
		lines = append(lines, statusIndent+"waiting for :next")
	}
	c.println(strings.Join(lines, "\n"))
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func parseToggle(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "yes", "y":
		return true, nil
	case "off", "no", "n":
		return false, nil
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, dispatch.Wrap(dispatch.ErrUserInput, "console", "auto", fmt.Sprintf("expected on or off, got %q", value), nil)
	}
	return enabled, nil
}
