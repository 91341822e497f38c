package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/mediacheck/internal/models"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report missing and unused media files",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "files",
				Usage: "Check against this list of folder files instead of the live folder",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit with status 2 when any file is missing or unused",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(ctx, cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer app.Close()

			var files []string
			if cmd.IsSet("files") {
				files = append([]string{}, cmd.StringSlice("files")...)
			}
			res, err := app.Service.Check(ctx, files)
			if err != nil {
				return fmt.Errorf("check: %w", err)
			}
			errorNotes, err := app.Service.LatexErrorNotes(ctx)
			if err != nil {
				return fmt.Errorf("check: list error notes: %w", err)
			}

			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				out := struct {
					*models.CheckResult
					ErrorNoteIDs []int64 `json:"error_note_ids"`
				}{res, errorNotes}
				if err := enc.Encode(out); err != nil {
					return err
				}
			} else {
				printCheckResult(os.Stdout, res, errorNotes)
			}

			if cmd.Bool("strict") && (len(res.Missing) > 0 || len(res.Unused) > 0) {
				return cli.Exit("", 2)
			}
			return nil
		},
	}
}

func printCheckResult(w io.Writer, res *models.CheckResult, errorNotes []int64) {
	summary := [][]string{
		{"Missing", strconv.Itoa(len(res.Missing))},
		{"Unused", strconv.Itoa(len(res.Unused))},
		{"Notes with LaTeX errors", strconv.Itoa(res.ErrorNotes)},
		{"Files renamed", strconv.Itoa(res.Renamed)},
		{"Passes", strconv.Itoa(res.Passes)},
	}
	fmt.Fprintf(w, "Check %s\n", res.RunID)
	fmt.Fprintln(w, renderTable([]string{"Result", "Count"}, summary, []columnAlignment{alignLeft, alignRight}))

	if len(res.Missing) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Missing"}, listRows(res.Missing), nil))
	}
	if len(res.Unused) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Unused"}, listRows(res.Unused), nil))
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Warnings"}, listRows(res.Warnings), nil))
	}
	if len(errorNotes) > 0 {
		ids := make([]string, len(errorNotes))
		for i, id := range errorNotes {
			ids[i] = strconv.FormatInt(id, 10)
		}
		fmt.Fprintln(w, renderTable([]string{"Notes with LaTeX errors"}, listRows(ids), []columnAlignment{alignRight}))
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Replace LaTeX markers in HTML with image tags",
		ArgsUsage: "[FILE|-]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "notetype",
				Aliases:  []string{"t"},
				Usage:    "Note type whose LaTeX settings apply",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			html, err := readInput(cmd.Args().First())
			if err != nil {
				return err
			}

			app, err := openApp(ctx, cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.Render(ctx, html, int64(cmd.Int("notetype")))
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}
			fmt.Fprintln(os.Stdout, res.HTML)
			if res.Failed {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func doctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check that the LaTeX toolchain and folders are usable",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(ctx, cmd, io.Discard)
			if err != nil {
				return err
			}
			defer app.Close()

			cfg := app.Config
			tracked := "unreadable"
			if files, err := app.MediaDB.Files(ctx); err == nil {
				tracked = strconv.Itoa(len(files))
			}
			fmt.Fprintln(os.Stdout, renderTable([]string{"Setting", "Value"}, [][]string{
				{"Collection", cfg.Collection.Path},
				{"Media folder", app.Folder.Root()},
				{"Media database", app.MediaDB.Path()},
				{"Tracked media files", tracked},
				{"NFC policy", cfg.Media.NFCPolicy},
				{"LaTeX building", strconv.FormatBool(cfg.Latex.Build)},
			}, nil))

			tools := app.Builder.Toolchain()
			rows := make([][]string, 0, len(tools))
			missingRequired := false
			for _, tool := range tools {
				status := "ok"
				if !tool.Available {
					status = "missing"
					if !tool.Optional {
						missingRequired = true
					}
				}
				rows = append(rows, []string{tool.Name, tool.Command, status, tool.Detail})
			}
			fmt.Fprintln(os.Stdout, renderTable([]string{"Tool", "Command", "Status", "Detail"}, rows, nil))

			if missingRequired && cfg.Latex.Build {
				return cli.Exit("LaTeX is required when latex.build is enabled", 1)
			}
			return nil
		},
	}
}
