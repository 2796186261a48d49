package main

import (
	"io"

	"github.com/spf13/cobra"

	mscfb "github.com/asalih/go-mscfb-scan"
)

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat FILE STREAM",
		Short: "Copy a stream to stdout",
		Long: `Copy the contents of a stream to stdout. STREAM is a slash separated
path from the root storage, for example "ObjectPool/_1/Contents".`,
		Args: cobra.ExactArgs(2),
		RunE: cat,
	}
}

func cat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	validation, err := cfg.ValidationMode()
	if err != nil {
		return err
	}

	cf, err := mscfb.Open(args[0], mscfb.WithValidation(validation))
	if err != nil {
		return err
	}
	defer cf.Close()

	stream, err := cf.OpenStream(args[1])
	if err != nil {
		return err
	}

	_, err = io.Copy(cmd.OutOrStdout(), stream)
	return err
}
