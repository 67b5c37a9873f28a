package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"
	"github.com/valerio/go-dotmatrix/dotmatrix"
	"github.com/valerio/go-dotmatrix/dotmatrix/rec"
	"github.com/valerio/go-dotmatrix/dotmatrix/serial"
)

func main() {
	app := cli.NewApp()
	app.Name = "dotmatrix"
	app.Description = "A cycle-driven DMG emulator core, run headless"
	app.Usage = "dotmatrix [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run",
			Value: 60,
		},
		cli.BoolFlag{
			Name:  "strict",
			Usage: "Treat advisory header problems (global checksum, odd fields) as fatal",
		},
		cli.StringFlag{
			Name:  "boot",
			Usage: "Path to a 256-byte boot ROM image",
		},
		cli.StringFlag{
			Name:  "save",
			Usage: "Path to the battery save file (loaded before, written after)",
		},
		cli.StringFlag{
			Name:  "wav",
			Usage: "Capture audio output to a WAV file",
		},
		cli.BoolFlag{
			Name:  "serial-log",
			Usage: "Attach a logging sink to the link cable and print its output",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("verbose") {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	var opts []dotmatrix.Option
	if c.Bool("strict") {
		opts = append(opts, dotmatrix.WithStrict())
	}
	if bootPath := c.String("boot"); bootPath != "" {
		boot, err := os.ReadFile(bootPath)
		if err != nil {
			return fmt.Errorf("reading boot ROM: %w", err)
		}
		opts = append(opts, dotmatrix.WithBootROM(boot))
	}

	var sink *serial.LogSink
	if c.Bool("serial-log") {
		sink = serial.NewLogSink()
		opts = append(opts, dotmatrix.WithSerialDevice(sink))
	}

	dmg, err := dotmatrix.NewWithFile(romPath, opts...)
	if err != nil {
		return err
	}

	savePath := c.String("save")
	if savePath != "" {
		if data, err := os.ReadFile(savePath); err == nil {
			dmg.LoadRAM(data)
			slog.Info("Loaded save RAM", "path", savePath, "size", len(data))
		}
	}

	var recorder *rec.Recorder
	if wavPath := c.String("wav"); wavPath != "" {
		recorder, err = rec.NewRecorder(wavPath)
		if err != nil {
			return err
		}
	}

	frames := c.Int("frames")
	for i := 0; i < frames; i++ {
		dmg.RunFrame()
		if recorder != nil {
			recorder.Push(dmg.Samples())
		}
	}
	slog.Info("Run complete", "frames", frames, "cycles", dmg.Cycles())

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			return err
		}
	}

	if savePath != "" {
		if data := dmg.SaveRAM(); data != nil {
			if err := os.WriteFile(savePath, data, 0o644); err != nil {
				return fmt.Errorf("writing save RAM: %w", err)
			}
			slog.Info("Wrote save RAM", "path", savePath, "size", len(data))
		}
	}

	if sink != nil && len(sink.Bytes) > 0 {
		fmt.Print(sink.String())
	}

	return nil
}
