package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/b1naryth1ef/quarry"
	"github.com/b1naryth1ef/quarry/dl"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"
	"github.com/urfave/cli/v2"
)

func main() {
	godotenv.Load()
	log.SetFlags(log.Ldate | log.Ltime)

	app := &cli.App{
		Name:        "quarry",
		Description: "renders minecraft worlds into quadtree map tiles",
		Commands: []*cli.Command{
			{
				Name:   "render",
				Action: commandRender,
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  "config",
						Usage: "path to the configuration file",
						Value: "config.hcl",
					},
					&cli.IntFlag{
						Name:    "threads",
						Aliases: []string{"t"},
						Usage:   "render workers per map rotation",
					},
					&cli.BoolFlag{
						Name:  "batch",
						Usage: "report progress in 10% steps instead of continuously",
					},
					&cli.PathFlag{
						Name:  "log-file",
						Usage: "also write logs to this rotating file",
					},
					&cli.StringSliceFlag{
						Name:    "render-auto",
						Aliases: []string{"a"},
						Usage:   "render changed tiles of 'map', 'map:rotation' or '@all'",
					},
					&cli.StringSliceFlag{
						Name:    "render-skip",
						Aliases: []string{"s"},
						Usage:   "skip rendering of 'map', 'map:rotation' or '@all'",
					},
					&cli.StringSliceFlag{
						Name:    "render-force",
						Aliases: []string{"f"},
						Usage:   "re-render every tile of 'map', 'map:rotation' or '@all'",
					},
				},
			},
			{
				Name:   "fetch-textures",
				Action: commandFetchTextures,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "version",
						Usage: "minecraft version to download (defaults to the latest release)",
					},
					&cli.PathFlag{
						Name:  "out",
						Usage: "directory to extract textures into",
						Value: "textures",
					},
					&cli.PathFlag{
						Name:  "jar",
						Usage: "extract from an already downloaded client jar instead",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandRender(ctx *cli.Context) error {
	if path := ctx.Path("log-file"); path != "" {
		log.SetOutput(io.MultiWriter(&lumberjack.Logger{
			Filename: path,
			MaxSize:  10,
			Compress: true,
		}, os.Stdout))
	}

	config, err := quarry.LoadConfig(ctx.Path("config"))
	if err != nil {
		return err
	}

	behaviors := quarry.NewRenderBehaviors()
	for behavior, flag := range map[quarry.RenderBehavior]string{
		quarry.RenderAuto:  "render-auto",
		quarry.RenderSkip:  "render-skip",
		quarry.RenderForce: "render-force",
	} {
		for _, spec := range ctx.StringSlice(flag) {
			if err := behaviors.Set(config, spec, behavior); err != nil {
				return err
			}
		}
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := &quarry.Manager{
		Config:    config,
		Behaviors: behaviors,
		Threads:   ctx.Int("threads"),
		Env: &quarry.Environment{
			Progress: progressPrinter(ctx.Bool("batch")),
		},
	}
	return manager.Run(runCtx)
}

// progressPrinter logs completed work. Interactive runs print every percent
// the dispatcher reports; batch runs only cross 10% boundaries so piped logs
// stay short.
func progressPrinter(batch bool) quarry.ProgressFunc {
	step := 1
	if batch {
		step = 10
	}
	var mu sync.Mutex
	last := -1
	return func(done, total int) {
		if total == 0 {
			return
		}
		pct := done * 100 / total
		mu.Lock()
		defer mu.Unlock()
		if pct/step == last && done != total {
			return
		}
		last = pct / step
		log.Printf("[quarry] rendered %s/%s tiles (%d%%)",
			humanize.Comma(int64(done)), humanize.Comma(int64(total)), pct)
	}
}

func commandFetchTextures(ctx *cli.Context) error {
	out := ctx.Path("out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}

	jarPath := ctx.Path("jar")
	if jarPath == "" {
		tmp, err := os.CreateTemp("", "quarry-client-*.jar")
		if err != nil {
			return err
		}
		jarPath = tmp.Name()
		tmp.Close()
		defer os.Remove(jarPath)

		version, err := dl.DownloadClientJar(ctx.String("version"), jarPath)
		if err != nil {
			return err
		}
		log.Printf("[quarry] downloaded client jar for %s", version.ID)
	}

	count, err := quarry.ExtractTextures(jarPath, out)
	if err != nil {
		return err
	}
	log.Printf("[quarry] extracted %s block textures to %s", humanize.Comma(int64(count)), out)
	return nil
}
