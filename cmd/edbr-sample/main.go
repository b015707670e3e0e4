// Command edbr-sample renders a mesh with cascaded shadows under a skybox.
package main

import (
	"flag"
	"log"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/edbr/internal/config"
	"github.com/vkngwrapper/edbr/internal/gfx"
	"golang.org/x/exp/slog"
)

var (
	configPath = flag.String("config", "", "TOML configuration file; defaults are used when empty")
	meshPath   = flag.String("mesh", "meshes/viking_room.obj", "OBJ mesh, relative to the asset directory")
	texture    = flag.String("texture", "images/viking_room.png", "mesh texture, relative to the asset directory")
	skyboxDir  = flag.String("skybox", "skybox", "cubemap face directory, relative to the asset directory")
)

func init() {
	// SDL and the Vulkan queue submission must stay on the main thread.
	runtime.LockOSThread()
}

type App struct {
	cfg    config.Config
	logger *slog.Logger

	window   *sdl.Window
	device   *gfx.Device
	renderer *renderer
}

func (app *App) Run() error {
	err := app.initWindow()
	if err != nil {
		return err
	}
	defer app.cleanupWindow()

	app.device, err = gfx.New(app.window, app.cfg, app.logger)
	if err != nil {
		return err
	}
	defer app.device.Cleanup()

	app.renderer, err = newRenderer(app.device, app.cfg, app.logger)
	if err != nil {
		return err
	}
	defer app.renderer.cleanup()

	app.renderer.loadScene(*meshPath, *texture, *skyboxDir)

	return app.mainLoop()
}

func (app *App) initWindow() error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return errors.Wrap(err, "initializing sdl")
	}

	window, err := sdl.CreateWindow(app.cfg.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(app.cfg.Width), int32(app.cfg.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return errors.Wrap(err, "creating window")
	}
	app.window = window
	return nil
}

func (app *App) cleanupWindow() {
	if app.window != nil {
		_ = app.window.Destroy()
	}
	sdl.Quit()
}

func (app *App) mainLoop() error {
	rendering := true

appLoop:
	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				break appLoop
			case *sdl.KeyboardEvent:
				if e.Type != sdl.KEYDOWN {
					break
				}
				switch e.Keysym.Sym {
				case sdl.K_ESCAPE:
					break appLoop
				case sdl.K_r:
					app.renderer.reloadMesh()
				}
			case *sdl.WindowEvent:
				switch e.Event {
				case sdl.WINDOWEVENT_MINIMIZED:
					rendering = false
				case sdl.WINDOWEVENT_RESTORED:
					rendering = true
				case sdl.WINDOWEVENT_RESIZED:
					w, h := app.window.GetSize()
					if w > 0 && h > 0 {
						rendering = true
						if err := app.device.RecreateSwapchain(); err != nil {
							return err
						}
					} else {
						rendering = false
					}
				}
			}
		}

		if rendering {
			if err := app.renderer.drawFrame(); err != nil {
				return err
			}
		}
	}

	return app.device.WaitIdle()
}

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("%+v\n", err)
		}
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
	slog.SetDefault(logger)

	app := &App{cfg: cfg, logger: logger}
	if err := app.Run(); err != nil {
		log.Fatalf("%+v\n", err)
	}
}
