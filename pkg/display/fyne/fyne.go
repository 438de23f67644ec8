// Package fyne provides a desktop display driver built on fyne.
package fyne

import (
	"context"
	"errors"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/thelolagemann/gomeboy-web/pkg/display"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
	"golang.design/x/clipboard"
)

var driver = &Driver{}

func init() {
	display.Install("fyne", driver, []display.DriverOption{
		{
			Name:        "system-clipboard",
			Default:     true,
			Value:       &driver.SystemClipboard,
			Description: "fyne: copy status to the system clipboard instead of fyne's",
			Type:        "bool",
		},
	})
}

// Driver shows the front end in a desktop window.
type Driver struct {
	SystemClipboard bool

	fe  display.Frontend
	log log.Logger

	mu  sync.Mutex
	app fyne.App
}

// Initialize attaches the driver to fe.
func (d *Driver) Initialize(fe display.Frontend, logger log.Logger) {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	d.fe = fe
	d.log = logger
}

// Start opens the window and blocks until it is closed or ctx is
// done.
func (d *Driver) Start(ctx context.Context) error {
	if d.fe == nil {
		return errors.New("fyne: driver not initialized")
	}

	a := app.NewWithID("com.github.thelolagemann.gomeboy-web")
	a.Settings().SetTheme(defaultTheme{})
	d.mu.Lock()
	d.app = a
	d.mu.Unlock()

	w := newWindow(ctx, a, d.fe, d.log)
	if d.SystemClipboard {
		if err := clipboard.Init(); err != nil {
			d.log.Errorf("fyne: system clipboard unavailable, using fyne's: %v", err)
		} else {
			w.copyText = func(s string) error {
				clipboard.Write(clipboard.FmtText, []byte(s))
				return nil
			}
		}
	}
	w.SetMaster()

	d.fe.Ready(ctx)
	stop := context.AfterFunc(ctx, a.Quit)
	defer stop()

	w.ShowAndRun()
	return nil
}

// Stop closes the window.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.app != nil {
		d.app.Quit()
	}
	return nil
}
