package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	mscfb "github.com/asalih/go-mscfb-scan"
	"github.com/asalih/go-mscfb-scan/internal/util"
)

func lsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls FILE",
		Short: "List the storages and streams of a compound file",
		Args:  cobra.ExactArgs(1),
		RunE:  ls,
	}

	cmd.Flags().Bool("no-digest", false, "Do not read streams to compute their sha256 digest")

	return cmd
}

func ls(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	validation, err := cfg.ValidationMode()
	if err != nil {
		return err
	}
	noDigest, _ := cmd.Flags().GetBool("no-digest")

	cf, err := mscfb.Open(args[0], mscfb.WithValidation(validation))
	if err != nil {
		return err
	}
	defer cf.Close()

	logger := util.GetLogger("ls")
	logger.Debug().
		Stringer("version", cf.Header.Version).
		Int("entries", cf.Directory.Len()).
		Msg("opened")

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tSIZE\tITEMS\tCLSID\tDIGEST\tPATH")

	err = cf.VisitEntries(func(entry mscfb.Entry) error {
		info := entry.Info()
		switch e := entry.(type) {
		case *mscfb.StorageEntry:
			fmt.Fprintf(w, "storage\t-\t%d\t%s\t-\t%q\n", len(e.Children()), info.CLSID, info.Path)
		case *mscfb.StreamEntry:
			sum := "-"
			if !noDigest {
				data, err := cf.ReadStream(e)
				if err != nil {
					return fmt.Errorf("%s: %w", info.Path, err)
				}
				sum = digest.FromBytes(data).String()
			}
			fmt.Fprintf(w, "stream\t%d\t-\t%s\t%s\t%q\n", e.Size, info.CLSID, sum, info.Path)
		}
		return nil
	}, true)
	if err != nil {
		return err
	}

	return w.Flush()
}
