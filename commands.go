package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"voxcap/config"
	"voxcap/decode"
	"voxcap/download"
	"voxcap/library"
	"voxcap/log"
	"voxcap/pipeline"
	"voxcap/playback"
	"voxcap/shutdown"
)

// convert renders raw (FLAC, WAV or MP3) as format.
func convert(p *pipeline.Pipeline, raw []byte, format, base string) (pipeline.Artifact, error) {
	switch format {
	case "wav":
		w, err := p.ExportAsWav(raw)
		if err != nil {
			return pipeline.Artifact{}, err
		}
		return pipeline.WavArtifact(w, base), nil
	case "mp3":
		m, err := p.ExportAsMp3(raw)
		if err != nil {
			return pipeline.Artifact{}, err
		}
		return pipeline.Mp3Artifact(m, base), nil
	}
	return pipeline.Artifact{}, fmt.Errorf("unknown format %q (use mp3 or wav)", format)
}

func runExport(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", cfg.Export.Format, "output format: mp3 or wav")
	out := fs.String("o", "", "output file (default: <export dir>/<input name>.<format>)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: voxcap export [-format mp3|wav] [-o path] <file>")
		return 2
	}
	in := fs.Arg(0)
	raw, err := os.ReadFile(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	p, err := pipeline.New(nil, cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	start := time.Now()
	art, err := convert(p, raw, *format, filepath.Base(in))
	log.Export(*format, art.SuggestedName, len(art.Bytes), time.Since(start), err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	path := *out
	if path != "" {
		err = os.WriteFile(path, art.Bytes, 0o644)
	} else {
		path, err = download.New(cfg.Export.Dir, nil).Save(art)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.Saved(path)
	fmt.Printf("%s (%.1f KB, %s)\n", path, float64(len(art.Bytes))/1024, time.Since(start).Round(time.Millisecond))
	return 0
}

func runLibrary(cfg *config.Config, args []string) int {
	lib, err := library.Open(cfg.Library.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer lib.Close()

	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	if sub == "list" {
		listLibrary(lib)
		return 0
	}

	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: voxcap library %s <id>\n", sub)
		return 2
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: bad id %q\n", args[0])
		return 2
	}

	switch sub {
	case "get":
		e, data, err := lib.Get(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		path, err := download.New(cfg.Export.Dir, nil).Save(pipeline.Artifact{
			Bytes:         data,
			MimeType:      e.MimeType,
			SuggestedName: e.Filename + extFor(e.MimeType),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		log.Saved(path)
		fmt.Println(path)
	case "rm", "delete":
		if err := lib.Delete(id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		log.Infof("library_delete: id=%d", id)
	case "play":
		_, data, err := lib.Get(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return play(cfg, data)
	default:
		fmt.Fprintf(os.Stderr, "unknown library command %q\n", sub)
		return 2
	}
	return 0
}

func extFor(mime string) string {
	if mime == pipeline.MimeWAV {
		return ".wav"
	}
	return ".mp3"
}

func listLibrary(lib *library.Library) {
	entries := lib.List()
	if len(entries) == 0 {
		fmt.Println("library is empty")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSAVED\tSIZE\tTYPE")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f KB\t%s\n",
			e.ID, e.Filename, e.Timestamp.Local().Format("2006-01-02 15:04"), float64(e.Size)/1024, e.MimeType)
	}
	w.Flush()
}

func runPlay(cfg *config.Config, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: voxcap play <file>")
		return 2
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return play(cfg, data)
}

func play(cfg *config.Config, data []byte) int {
	buf, err := decode.Decode(data, cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	fmt.Printf("Playing %.1fs, %d Hz, %d ch (Ctrl+C to stop)\n", buf.Duration(), buf.SampleRate, buf.Channels)
	if err := playback.NewPlayer().Preview(ctx, buf); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runBenchmark times both export paths over a WAV file.
func runBenchmark(cfg *config.Config, path string, runs int) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Benchmark: %s (%d runs)\n", path, runs)

	for i := 1; i <= runs; i++ {
		// a fresh pipeline per run keeps the decode cache cold
		p, err := pipeline.New(nil, cfg.Audio.SampleRate, cfg.Audio.Channels)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("=== Run %d ===\n", i)
		var lines []string
		for _, format := range []string{"wav", "mp3"} {
			start := time.Now()
			art, err := convert(p, raw, format, "benchmark")
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return 1
			}
			lines = append(lines, fmt.Sprintf("%-4s %8.1f KB  %6dms", format, float64(len(art.Bytes))/1024, time.Since(start).Milliseconds()))
		}
		fmt.Println("  " + strings.Join(lines, "\n  "))
	}
	return 0
}
