package app

import (
	"net/url"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"p506log/pkg/acquire"
	"p506log/pkg/app/config"
	"p506log/pkg/csvlog"
	"p506log/pkg/mqtt"
	"p506log/pkg/protek506"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Webserver.URL parameter
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// csv is the open measurement log
	csv *csvlog.Writer

	// loop is the acquisition loop polling the meter
	loop *acquire.Loop

	// last is the most recently accepted reading
	last struct {
		sync.RWMutex
		data protek506.Reading
	}
}

// New checks the web server URL and initializes the main app structure.
func New(cfg *config.Config) (*App, error) {
	u, err := url.Parse(cfg.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", cfg.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    cfg,
		urlParsed: u,

		web:  fiber.New(),
		mqtt: mqtt.New(cfg.MQTT.Topic),
	}, nil
}

// Run starts the application: the sinks, the web server and the acquisition
// loop. The blocking part is locating the meter; once Run returns nil the
// measurement stream is live.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()

	return app.loop.Start(app.locate)
}

// init opens the log target and the mqtt connection and wires the loop.
func (app *App) init() error {
	csv, err := csvlog.Open(app.config.DataFile)
	if err != nil {
		debug.ErrorLog.Printf("can't open log file %q: %v", app.config.DataFile, err)
		return err
	}
	app.csv = csv

	if err = app.mqtt.Connect(app.config.MQTT.Connection); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	app.loop = acquire.New(app.config.Delay, app, app.csv, app.mqtt)

	// initDefaultRoutes should always be called last because it may access
	// things which must be initialized before
	app.initDefaultRoutes()

	return nil
}

// Fault delivers the session-fatal error of the acquisition loop.
func (app *App) Fault() <-chan error {
	return app.loop.Fault()
}

// Close stops the acquisition loop and releases all handles.
func (app *App) Close() error {
	if app.loop != nil {
		app.loop.Stop()
	}

	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}

	if app.csv != nil {
		return app.csv.Close()
	}
	return nil
}
