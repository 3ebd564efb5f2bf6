package console

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/session"
)

type fakeController struct {
	calls []string
}

func (f *fakeController) TogglePause()  { f.calls = append(f.calls, "toggle") }
func (f *fakeController) Skip()         { f.calls = append(f.calls, "skip") }
func (f *fakeController) Reset()        { f.calls = append(f.calls, "reset") }
func (f *fakeController) Stop()         { f.calls = append(f.calls, "stop") }
func (f *fakeController) CompleteStep() { f.calls = append(f.calls, "complete") }

type fakeViews struct{}

func (fakeViews) Listen(chan<- session.View) func() { return func() {} }

func newTestConsole(t *testing.T, profile session.Profile) (*Console, *fakeController) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	ctrl := &fakeController{}
	c := New(Options{Controller: ctrl, Views: fakeViews{}, Profile: profile, Logger: logger})
	return c, ctrl
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestHandleKey_MapsCommands(t *testing.T) {
	c, ctrl := newTestConsole(t, session.ProfileHybrid)

	for _, r := range []rune{' ', 'n', 'r', 'x', 'c', 'N'} {
		assert.Nil(t, c.handleKey(runeKey(r)), "key %q should be consumed", r)
	}
	assert.Equal(t, []string{"toggle", "skip", "reset", "stop", "complete", "skip"}, ctrl.calls)
}

func TestHandleKey_CompleteOnlyForHybrid(t *testing.T) {
	c, ctrl := newTestConsole(t, session.ProfileConditioning)

	ev := runeKey('c')
	assert.Equal(t, ev, c.handleKey(ev))
	assert.Empty(t, ctrl.calls)
}

func TestHandleKey_PassesThroughOtherKeys(t *testing.T) {
	c, ctrl := newTestConsole(t, session.ProfileEnhanced)

	ev := runeKey('z')
	assert.Equal(t, ev, c.handleKey(ev))
	up := tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
	assert.Equal(t, up, c.handleKey(up))
	assert.Empty(t, ctrl.calls)
}

func TestHandleKey_QuitStopsWithoutCommands(t *testing.T) {
	c, ctrl := newTestConsole(t, session.ProfileConditioning)

	assert.Nil(t, c.handleKey(runeKey('q')))
	assert.Nil(t, c.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
	assert.Empty(t, ctrl.calls)
}

func TestNew_RequiresDependencies(t *testing.T) {
	logger, _ := test.NewNullLogger()
	assert.PanicsWithValue(t, "Console: logger cannot be nil", func() {
		New(Options{Controller: &fakeController{}, Views: fakeViews{}})
	})
	assert.PanicsWithValue(t, "Console: controller cannot be nil", func() {
		New(Options{Views: fakeViews{}, Logger: logger})
	})
	assert.PanicsWithValue(t, "Console: views cannot be nil", func() {
		New(Options{Controller: &fakeController{}, Logger: logger})
	})
}
