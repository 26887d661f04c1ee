package main

import (
	"github.com/spf13/cobra"

	"github.com/dudu/faceswap/internal/models"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the model files into the model directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return models.Download(cmd.Context(), cfg.ModelDir)
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
