package fyne

import (
	"context"
	"image/color"
	"io"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/thelolagemann/gomeboy-web/internal/frontend"
	"github.com/thelolagemann/gomeboy-web/internal/lifecycle"
	"github.com/thelolagemann/gomeboy-web/internal/loader"
	"github.com/thelolagemann/gomeboy-web/pkg/display"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
)

var romExtensions = []string{".gb", ".gbc", ".bin", ".zip", ".7z", ".gz", ".br"}

// window is the main window: the readiness line, the loop status
// and the controls selecting a ROM.
type window struct {
	fyne.Window
	ctx context.Context
	app fyne.App
	fe  display.Frontend
	log log.Logger

	message, loop binding.String
	indicator     *canvas.Circle
	open, copy    *widget.Button

	// copyText writes to the clipboard; defaults to the clipboard
	// of the window.
	copyText func(string) error

	mu        sync.Mutex
	last      fyne.URI
	lastState string
	hasROM    bool
	unwatch   func()
}

func newWindow(ctx context.Context, a fyne.App, fe display.Frontend, logger log.Logger) *window {
	w := &window{
		Window:  a.NewWindow("GomeBoy"),
		ctx:     ctx,
		app:     a,
		fe:      fe,
		log:     logger,
		message: binding.NewString(),
		loop:    binding.NewString(),
	}
	w.copyText = func(s string) error {
		w.Clipboard().SetContent(s)
		return nil
	}

	w.indicator = canvas.NewCircle(w.color(lifecycle.NotReady))
	w.indicator.Resize(fyne.NewSize(12, 12))
	w.open = widget.NewButtonWithIcon("Open ROM", theme.FolderOpenIcon(), w.openROM)
	w.copy = widget.NewButtonWithIcon("Copy status", theme.ContentCopyIcon(), w.copyStatus)

	message := widget.NewLabelWithData(w.message)
	message.TextStyle = fyne.TextStyle{Bold: true}
	w.SetContent(container.NewVBox(
		container.NewHBox(container.NewGridWrap(fyne.NewSize(12, 12), w.indicator), message),
		widget.NewLabelWithData(w.loop),
		container.NewHBox(w.open, w.copy),
	))
	w.Resize(fyne.NewSize(160*3, 144*2))

	w.render(fe.View())
	w.unwatch = fe.Watch(w.render)
	w.SetOnClosed(w.unwatch)
	return w
}

// render updates the window from v. It may be called from any
// goroutine.
func (w *window) render(v frontend.View) {
	w.message.Set(v.Message)
	status := v.Loop
	if v.ROM != nil {
		status += " - " + v.ROM.Name
	}
	w.loop.Set(status)

	w.mu.Lock()
	changed := v.State != w.lastState || (v.ROM != nil) != w.hasROM
	w.lastState, w.hasROM = v.State, v.ROM != nil
	w.mu.Unlock()
	if !changed {
		return
	}

	var state lifecycle.State
	switch v.State {
	case lifecycle.Ready.String():
		state = lifecycle.Ready
	case lifecycle.Failed.String():
		state = lifecycle.Failed
	}
	w.indicator.FillColor = w.color(state)
	w.indicator.Refresh()
	w.SetMainMenu(w.menu(state.IsReady(), v.ROM != nil))
}

func (w *window) color(s lifecycle.State) color.Color {
	name := theme.ColorNameDisabled
	switch {
	case s.IsReady():
		name = theme.ColorNamePrimary
	case s.IsFailed():
		name = ColorNameFailed
	}
	return w.app.Settings().Theme().Color(name, w.app.Settings().ThemeVariant())
}

func (w *window) menu(ready, loaded bool) *fyne.MainMenu {
	return fyne.NewMainMenu(
		fyne.NewMenu("File",
			NewCustomizedMenuItem("Open ROM...", w.openROM),
			NewCustomizedMenuItem("Reload ROM", w.reload, Gated(ready && loaded)),
			fyne.NewMenuItemSeparator(),
			NewCustomizedMenuItem("Copy status", w.copyStatus),
		),
	)
}

func (w *window) openROM() {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if rc == nil {
			// dismissed without a file
			w.selectFiles()
			return
		}
		uri := rc.URI()
		rc.Close()
		w.load(uri)
	}, w)
	d.SetFilter(storage.NewExtensionFileFilter(romExtensions))
	d.Show()
}

func (w *window) reload() {
	w.mu.Lock()
	uri := w.last
	w.mu.Unlock()
	if uri != nil {
		w.load(uri)
	}
}

// load selects uri, reading it again from storage on every load.
func (w *window) load(uri fyne.URI) {
	w.mu.Lock()
	w.last = uri
	w.mu.Unlock()

	w.selectFiles(loader.File{
		Name: uri.Name(),
		Open: func() (io.ReadCloser, error) {
			return storage.Reader(uri)
		},
	})
}

// selectFiles hands the selection to the front end off the UI
// goroutine.
func (w *window) selectFiles(files ...loader.File) {
	go func() {
		if err := w.fe.Select(w.ctx, files...); err != nil {
			w.log.Errorf("fyne: %v", err)
			dialog.ShowError(err, w)
		}
	}()
}

func (w *window) copyStatus() {
	message, _ := w.message.Get()
	loop, _ := w.loop.Get()
	if err := w.copyText(message + "\n" + loop); err != nil {
		w.log.Errorf("fyne: copy status: %v", err)
	}
}
