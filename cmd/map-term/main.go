package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nsf/termbox-go"

	"botmap/internal/mapview"
	"botmap/pkg/logger"
)

// viewer holds the terminal state around a render context
type viewer struct {
	rc      *mapview.RenderContext
	timeout time.Duration

	cursor  mapview.Point
	offset  mapview.Point
	message []string

	// redraw holds at most one pending wakeup; listeners never block on it.
	redraw chan struct{}
}

func newViewer(rc *mapview.RenderContext, timeout time.Duration) *viewer {
	v := &viewer{rc: rc, timeout: timeout, redraw: make(chan struct{}, 1)}
	rc.OnPass(v.passRendered)
	return v
}

// passRendered runs on whichever goroutine emitted the pass, including
// the event loop itself, so it only queues a wakeup.
func (v *viewer) passRendered(mapview.Pass) {
	select {
	case v.redraw <- struct{}{}:
	default:
	}
}

// forwardRedraws turns queued wakeups into termbox interrupts until done closes.
func (v *viewer) forwardRedraws(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-v.redraw:
			termbox.Interrupt()
		}
	}
}

func main() {
	backend := flag.String("backend", "http://localhost:5000", "Base URL of the world backend")
	logPath := flag.String("log", "map-term.log", "Log file (the terminal is used for drawing)")
	timeout := flag.Duration("timeout", 10*time.Second, "Backend request timeout")
	flag.Parse()

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Printf("Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger.InitWithOutput(logFile)

	if err := termbox.Init(); err != nil {
		fmt.Printf("Failed to initialize terminal: %v\n", err)
		os.Exit(1)
	}
	defer termbox.Close()

	client := mapview.NewClient(*backend, *timeout)
	rc := mapview.NewRenderContext(client, mapview.DefaultSettings())
	v := newViewer(rc, *timeout)

	done := make(chan struct{})
	go v.forwardRedraws(done)

	poller := mapview.NewPoller(rc, 0, 0, *timeout)
	poller.Start()

	v.loop()

	// The poller never blocks on the terminal, so Stop returns promptly.
	poller.Stop()
	close(done)
}

func (v *viewer) loop() {
	v.draw()
	for {
		ev := termbox.PollEvent()
		switch ev.Type {
		case termbox.EventKey:
			if !v.handleKey(ev) {
				return
			}
		case termbox.EventError:
			logger.Log.WithError(ev.Err).Error("Terminal event error")
			return
		}
		v.draw()
	}
}

// handleKey applies one keypress and reports whether to keep running.
func (v *viewer) handleKey(ev termbox.Event) bool {
	switch ev.Key {
	case termbox.KeyEsc, termbox.KeyCtrlC:
		return false
	case termbox.KeyArrowUp:
		v.move(0, -1)
	case termbox.KeyArrowDown:
		v.move(0, 1)
	case termbox.KeyArrowLeft:
		v.move(-1, 0)
	case termbox.KeyArrowRight:
		v.move(1, 0)
	case termbox.KeyEnter:
		v.inspect()
	}

	switch ev.Ch {
	case 'q':
		return false
	case 'h':
		v.toggle(mapview.OverlayHomes)
	case 'i':
		v.toggle(mapview.OverlayInteractions)
	case 'a':
		v.toggle(mapview.OverlayAirports)
	case 'v':
		v.toggle(mapview.OverlayVisited)
	case 'p':
		v.toggle(mapview.OverlayPaths)
	case 's':
		v.selectAtCursor()
	case 'c':
		v.rc.ClearSelection()
		v.message = nil
	case 'j':
		v.joinAtCursor()
	case 'd':
		style := mapview.PathDotted
		if v.rc.Settings().PathStyle == mapview.PathDotted {
			style = mapview.PathSolid
		}
		v.rc.SetPathStyle(style)
	case 'r':
		ctx, cancel := v.context()
		defer cancel()
		if err := v.rc.Refresh(ctx); err != nil {
			v.message = []string{mapview.UserMessage(err)}
		}
	}
	return true
}

func (v *viewer) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), v.timeout)
}

func (v *viewer) move(dx, dy int) {
	info := v.rc.Frame().MapInfo
	v.cursor.X = min(max(v.cursor.X+dx, 0), max(info.Width-1, 0))
	v.cursor.Y = min(max(v.cursor.Y+dy, 0), max(info.Height-1, 0))
}

func (v *viewer) toggle(o mapview.Overlay) {
	ctx, cancel := v.context()
	defer cancel()
	on := !v.rc.Settings().Toggles.Get(o)
	if err := v.rc.SetOverlay(ctx, o, on); err != nil {
		v.message = []string{mapview.UserMessage(err)}
	}
}

func (v *viewer) inspect() {
	info, err := v.rc.SelectLocation(v.cursor.X, v.cursor.Y)
	if err != nil {
		v.message = []string{mapview.UserMessage(err)}
		return
	}
	v.message = describe(info)
}

// selectAtCursor selects the first bot standing under the cursor.
func (v *viewer) selectAtCursor() {
	info, err := v.rc.SelectLocation(v.cursor.X, v.cursor.Y)
	if err != nil {
		v.message = []string{mapview.UserMessage(err)}
		return
	}
	if len(info.BotsHere) == 0 {
		v.message = []string{"No bot here"}
		return
	}

	ctx, cancel := v.context()
	defer cancel()
	bot, err := v.rc.SelectBot(ctx, info.BotsHere[0].ID)
	if err != nil {
		v.message = []string{mapview.UserMessage(err)}
		return
	}
	v.message = []string{"Selected " + bot.DisplayName()}
}

// joinAtCursor queues the selected bot at the airport under the cursor.
func (v *viewer) joinAtCursor() {
	botID, ok := v.rc.Selected()
	if !ok {
		v.message = []string{"Select a bot first"}
		return
	}
	info, err := v.rc.SelectLocation(v.cursor.X, v.cursor.Y)
	if err != nil || len(info.Airports) == 0 {
		v.message = []string{"No airport here"}
		return
	}

	ctx, cancel := v.context()
	defer cancel()
	join, err := v.rc.JoinAirportQueue(ctx, botID, info.Airports[0].ID)
	if err != nil {
		v.message = []string{mapview.UserMessage(err)}
		return
	}
	v.message = []string{fmt.Sprintf("%s (position %d)", join.Message, join.PositionInQueue)}
}

func (v *viewer) draw() {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	width, height := termbox.Size()

	f := v.rc.Frame()
	if f.Grid == nil {
		drawText(0, 0, "Loading map... "+f.LastError, termbox.ColorDefault, termbox.ColorDefault)
		termbox.Flush()
		return
	}

	// Keep the cursor on screen; the last two rows hold the status line.
	viewW, viewH := width, max(height-2, 1)
	if v.cursor.X < v.offset.X {
		v.offset.X = v.cursor.X
	} else if v.cursor.X >= v.offset.X+viewW {
		v.offset.X = v.cursor.X - viewW + 1
	}
	if v.cursor.Y < v.offset.Y {
		v.offset.Y = v.cursor.Y
	} else if v.cursor.Y >= v.offset.Y+viewH {
		v.offset.Y = v.cursor.Y - viewH + 1
	}

	path := pathCells(f.Path)
	for sy := 0; sy < viewH; sy++ {
		for sx := 0; sx < viewW; sx++ {
			cell := f.Grid.Cell(v.offset.X+sx, v.offset.Y+sy)
			if cell == nil {
				continue
			}
			ch, fg := glyph(*cell, path)
			bg := background(*cell)
			if cell.X == v.cursor.X && cell.Y == v.cursor.Y {
				fg, bg = termbox.ColorBlack, termbox.ColorWhite
				if ch == ' ' {
					ch = '_'
				}
			}
			termbox.SetCell(sx, sy, ch, fg, bg)
		}
	}

	for i, line := range v.message {
		drawText(max(width-40, 0), i, line, termbox.ColorWhite|termbox.AttrBold, termbox.ColorBlack)
	}
	drawText(0, height-2, fmt.Sprintf("cursor %s  [enter] inspect [s]elect [j]oin [c]lear [d]otted [r]efresh [q]uit", v.cursor), termbox.ColorDefault, termbox.ColorDefault)
	drawText(0, height-1, statusLine(f), termbox.ColorDefault, termbox.ColorDefault)
	termbox.Flush()
}
