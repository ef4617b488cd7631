package app

import (
	"fmt"

	"p506log/pkg/acquire"
	"p506log/pkg/locator"
	"p506log/pkg/port"
	"p506log/pkg/protek506"
)

// locate resolves the serial port carrying the meter. A configured port
// bypasses enumeration but is probed the same way, so a bad manual choice
// fails at startup instead of producing an empty log.
func (app *App) locate() (acquire.Source, error) {
	open := func(name string) (locator.Port, error) {
		l, err := port.Open(name, app.config.Timeout)
		if err != nil {
			return nil, err
		}
		return l, nil
	}

	if app.config.Port != "" {
		p, err := locator.Override(app.config.Port, open)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	candidates, err := port.Candidates()
	if err != nil {
		return nil, err
	}

	p, err := locator.Locate(candidates, open)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Emit is the presentation sink: it keeps the latest reading for the web
// layer and prints a live view line for the operator.
func (app *App) Emit(r protek506.Reading) {
	app.last.Lock()
	app.last.data = r
	app.last.Unlock()

	fmt.Printf("%s  %s %s %s\n", r.TimeStamp.Format("15:04:05.000"), r.Mode, r.Value, r.Units)
}
