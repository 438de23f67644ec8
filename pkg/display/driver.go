// Package display defines the render surfaces of the front end.
//
// A driver shows the readiness line, the frame loop status and a
// file selection control, and hands selected files back to the
// front end. Drivers register themselves with Install in their
// init function; main picks one by name.
package display

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/thelolagemann/gomeboy-web/internal/frontend"
	"github.com/thelolagemann/gomeboy-web/internal/loader"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
)

var _ Frontend = (*frontend.App)(nil)

// Frontend is the part of the front end a driver interacts with.
type Frontend interface {
	// Ready starts the engine bootstrap if it has not started.
	Ready(ctx context.Context)
	// View returns the current render model.
	View() frontend.View
	// Watch calls fn whenever the render model changes.
	Watch(fn func(frontend.View)) (cancel func())
	// Select hands a file selection of zero or one files to
	// the loader.
	Select(ctx context.Context, files ...loader.File) error
	// Tick reports a display refresh of the driver.
	Tick()
}

// Driver is the interface that wraps the basic methods for a
// display driver.
type Driver interface {
	// Initialize initializes the display driver by attaching it to
	// the front end that is using it.
	Initialize(fe Frontend, logger log.Logger)
	// Start the display driver. It blocks until ctx is done or the
	// driver is closed by the user.
	Start(ctx context.Context) error
	// Stop the display driver.
	Stop() error
}

// DriverOption is a display driver option. This is used to
// configure a display driver.
type DriverOption struct {
	Name        string // name of the option
	Default     any    // default value of the option
	Value       any    // pointer to the value of the option
	Description string // description of the option
	Type        string // "int", "bool", "string", "float"
}

// InstalledDriver is a driver that has been installed. This is
// used to allow drivers to register their name.
type InstalledDriver struct {
	Name    string
	Options []DriverOption
	Driver
}

// InstalledDrivers is a list of all the installed drivers. This
// variable is exported so that it can be used by the main
// program to determine which drivers can be used. Drivers should
// call display.Install in their init() function.
var InstalledDrivers []*InstalledDriver

// PreferredDriver is selected by "auto" when it is installed.
const PreferredDriver = "web"

// GetDriver returns the driver with the given name, or nil if
// no driver with that name is installed. "auto" selects
// PreferredDriver, or the first installed driver without it.
func GetDriver(name string) Driver {
	if name == "auto" {
		if d := GetDriver(PreferredDriver); d != nil {
			return d
		}
		if len(InstalledDrivers) == 0 {
			return nil
		}
		return InstalledDrivers[0].Driver
	}
	for _, driver := range InstalledDrivers {
		if driver.Name == name {
			return driver.Driver
		}
	}

	return nil
}

// Install registers a display driver with the given name.
func Install(name string, driver Driver, options []DriverOption) {
	InstalledDrivers = append(InstalledDrivers, &InstalledDriver{
		Name:    name,
		Options: options,
		Driver:  driver,
	})
}

// Names returns the names of the installed drivers, sorted.
func Names() []string {
	names := make([]string, 0, len(InstalledDrivers))
	for _, d := range InstalledDrivers {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

// RegisterFlags registers every driver option with fs, prefixed
// with the driver name, e.g. -web-addr.
func RegisterFlags(fs *flag.FlagSet) error {
	for _, driver := range InstalledDrivers {
		for _, opt := range driver.Options {
			name := fmt.Sprintf("%s-%s", driver.Name, opt.Name)
			if err := registerFlag(fs, name, opt); err != nil {
				return err
			}
		}
	}
	return nil
}

func registerFlag(fs *flag.FlagSet, name string, opt DriverOption) error {
	switch opt.Type {
	case "string":
		p, pok := opt.Value.(*string)
		def, dok := opt.Default.(string)
		if pok && dok {
			fs.StringVar(p, name, def, opt.Description)
			return nil
		}
	case "bool":
		p, pok := opt.Value.(*bool)
		def, dok := opt.Default.(bool)
		if pok && dok {
			fs.BoolVar(p, name, def, opt.Description)
			return nil
		}
	case "float":
		p, pok := opt.Value.(*float64)
		def, dok := opt.Default.(float64)
		if pok && dok {
			fs.Float64Var(p, name, def, opt.Description)
			return nil
		}
	case "int":
		p, pok := opt.Value.(*int)
		def, dok := opt.Default.(int)
		if pok && dok {
			fs.IntVar(p, name, def, opt.Description)
			return nil
		}
	default:
		return fmt.Errorf("display: option %s has unknown type %q", name, opt.Type)
	}

	return fmt.Errorf("display: option %s does not match type %s (value %T, default %T)",
		name, opt.Type, opt.Value, opt.Default)
}
