package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/asalih/go-mscfb-scan/embedinfo"
	"github.com/asalih/go-mscfb-scan/internal/batch"
	"github.com/asalih/go-mscfb-scan/internal/util"
	"github.com/asalih/go-mscfb-scan/scan"
)

var errMissingInput = errors.New("some input files do not exist")

func embedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embeds [INPUT] [OUTPUTFILENAME]",
		Short: "Write the embedded OLE objects of report files as XML",
		Long: `Scan report files for embedded OLE object streams and write an
<Embedinfo> document for each one, next to the input as <name>.xml.

INPUT is a single file or a wildcard such as "reports/*.rpt". With -r every
*.rpt file below the working directory is processed and INPUT is omitted.
OUTPUTFILENAME is only allowed with a single input file and without --stdout.

Examples:
  $ mscfb embeds sales.rpt
  $ mscfb embeds sales.rpt out.xml
  $ mscfb embeds "reports/*.rpt" --workers 8
  $ mscfb embeds -r --ignore-errors`,
		Args: func(cmd *cobra.Command, args []string) error {
			if recursive, _ := cmd.Flags().GetBool("recursive"); recursive {
				return cobra.MaximumNArgs(1)(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE: embeds,
	}

	cmd.Flags().BoolP("recursive", "r", false, "Process *.rpt files recursively from the working directory")
	cmd.Flags().Bool("ignore-errors", false, "Log failed files and continue")
	cmd.Flags().Bool("stdout", false, "Write XML to stdout instead of files, one file at a time (not valid with OUTPUTFILENAME)")
	cmd.Flags().String("marker", scan.DefaultMarker, "Case-sensitive name substring that marks embedded objects")
	cmd.Flags().Int("workers", 0, "Files processed in parallel (default from config)")

	return cmd
}

func embeds(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := util.GetLogger("embeds")

	input, outputFilename := batch.RecursiveInput, ""
	if recursive, _ := cmd.Flags().GetBool("recursive"); recursive {
		if len(args) > 0 {
			outputFilename = args[0]
		}
	} else {
		input = args[0]
		if len(args) > 1 {
			outputFilename = args[1]
		}
	}

	toStdout, _ := cmd.Flags().GetBool("stdout")
	if toStdout && outputFilename != "" {
		return fmt.Errorf("outputfilename is not allowed with --stdout")
	}

	paths, err := batch.FindPaths(input)
	if err != nil {
		return err
	}
	if len(paths) > 1 && outputFilename != "" {
		return fmt.Errorf("outputfilename is only allowed with a single input file")
	}

	existing := paths[:0:0]
	for _, path := range paths {
		if !batch.Exists(path) {
			logger.Error().Str("file", path).Msg("file does not exist")
			continue
		}
		existing = append(existing, path)
	}

	validation, err := cfg.ValidationMode()
	if err != nil {
		return err
	}

	workers := cfg.Workers
	if toStdout {
		workers = 1
	}

	var stdoutMu sync.Mutex
	opts := batch.Options{
		Validation:   validation,
		Match:        scan.NameContains(cfg.Marker),
		Workers:      workers,
		IgnoreErrors: cfg.IgnoreErrors,
		Logger:       logger,
		Handle: func(res batch.Result) error {
			report := embedinfo.NewReport(res.Path, embedinfo.FromRecords(res.Records))
			if toStdout {
				stdoutMu.Lock()
				defer stdoutMu.Unlock()
				return embedinfo.Write(cmd.OutOrStdout(), report)
			}

			xmlPath := outputFilename
			if xmlPath == "" {
				xmlPath = xmlPathFor(res.Path)
			}
			logger.Info().Str("file", res.Path).Str("output", xmlPath).Int("embeds", len(res.Records)).Msg("dumping")
			return writeReportFile(xmlPath, report)
		},
	}

	if _, err := batch.Process(cmd.Context(), existing, opts); err != nil {
		return err
	}
	if len(existing) != len(paths) {
		return errMissingInput
	}
	return nil
}

// xmlPathFor replaces the extension of path with .xml.
func xmlPathFor(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".xml"
}

func writeReportFile(path string, report *embedinfo.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := embedinfo.Write(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
