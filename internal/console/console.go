package console

import (
	"context"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/sirupsen/logrus"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/safego"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/session"
)

const timelineRows = 12

// Controller receives the user's commands. *session.Session satisfies it.
type Controller interface {
	TogglePause()
	Skip()
	Reset()
	Stop()
	CompleteStep()
}

// ViewSource publishes session views. session.Session.Views() satisfies it.
type ViewSource interface {
	Listen(ch chan<- session.View) func()
}

type Options struct {
	App        *tview.Application
	Controller Controller
	Views      ViewSource
	Profile    session.Profile
	Logger     logrus.FieldLogger
}

// Console is the terminal UI of a running session.
type Console struct {
	logger     logrus.FieldLogger
	app        *tview.Application
	controller Controller
	views      ViewSource
	profile    session.Profile

	root          *tview.Flex
	timerPanel    *tview.TextView
	progressPanel *tview.TextView
	metricsPanel  *tview.TextView
	zonePanel     *tview.TextView
	timelinePanel *tview.TextView
	helpBar       *tview.TextView

	waitGroup sync.WaitGroup
}

func New(opts Options) *Console {
	if opts.Logger == nil {
		panic("Console: logger cannot be nil")
	}
	if opts.Controller == nil {
		panic("Console: controller cannot be nil")
	}
	if opts.Views == nil {
		panic("Console: views cannot be nil")
	}
	if opts.App == nil {
		opts.App = tview.NewApplication()
	}
	c := &Console{
		logger:     opts.Logger.WithField("component", "console"),
		app:        opts.App,
		controller: opts.Controller,
		views:      opts.Views,
		profile:    opts.Profile,
	}
	c.initLayout()
	c.app.SetInputCapture(c.handleKey)
	return c
}

func newPanel(title string) *tview.TextView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBorder(true).SetTitle(" " + title + " ")
	return tv
}

func (c *Console) initLayout() {
	c.timerPanel = newPanel("Segment")
	c.progressPanel = newPanel("Progress")
	c.timelinePanel = newPanel("Timeline")
	c.metricsPanel = newPanel("Live Metrics")
	c.zonePanel = newPanel("Zones")
	c.helpBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.timerPanel, 0, 3, false).
		AddItem(c.progressPanel, 4, 0, false)

	right := tview.NewFlex().SetDirection(tview.FlexRow)
	if c.profile.ShowsLiveMetrics() {
		right.AddItem(c.zonePanel, 0, 1, false)
		right.AddItem(c.metricsPanel, 0, 1, false)
	}
	right.AddItem(c.timelinePanel, 0, 2, false)

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(left, 0, 1, false).
		AddItem(right, 0, 1, false)

	c.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, false).
		AddItem(c.helpBar, 1, 0, false)
}

// handleKey maps keys to session commands.
func (c *Console) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyEscape {
		c.app.Stop()
		return nil
	}
	if event.Key() != tcell.KeyRune {
		return event
	}
	switch event.Rune() {
	case ' ':
		c.controller.TogglePause()
	case 'n', 'N':
		c.controller.Skip()
	case 'r', 'R':
		c.controller.Reset()
	case 'x', 'X':
		c.controller.Stop()
	case 'c', 'C':
		if !c.profile.ManualSteps() {
			return event
		}
		c.controller.CompleteStep()
	case 'q', 'Q':
		c.app.Stop()
	default:
		return event
	}
	return nil
}

// render updates every panel from v. It must run on the tview goroutine.
func (c *Console) render(v session.View) {
	c.timerPanel.SetText(renderTimer(v))
	c.progressPanel.SetText(renderProgress(v))
	c.timelinePanel.SetText(renderTimeline(v, timelineRows))
	if c.profile.ShowsLiveMetrics() {
		c.metricsPanel.SetText(renderMetrics(v))
		c.zonePanel.SetText(renderZones(v))
	}
	c.helpBar.SetText(renderHelp(v))
}

// Run shows the UI and blocks until the user quits or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.waitGroup.Wait()
	}()

	viewChan := make(chan session.View, 1)
	unsubscribe := c.views.Listen(viewChan)

	c.waitGroup.Add(1)
	safego.Go(c.logger, func() {
		defer c.waitGroup.Done()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				c.app.Stop()
				return
			case v := <-viewChan:
				c.app.QueueUpdateDraw(func() { c.render(v) })
			}
		}
	})

	c.app.SetRoot(c.root, true)
	c.logger.Debug("console running")
	return c.app.Run()
}
