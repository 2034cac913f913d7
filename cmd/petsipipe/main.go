// Command petsipipe runs the offline SiPM/PET event-processing pipeline
// over a raw acquisition file: reader -> decoder -> coarse sort -> hit
// processor -> grouper -> coincidence grouper -> sink.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/petsys-go/petsipipe/internal/pipelog"
)

func main() {
	root := &cobra.Command{
		Use:   "petsipipe",
		Short: "Offline event-processing pipeline for SiPM/PET raw acquisition data",
		Long: `petsipipe turns a raw acquisition file into gamma-ray coincidences:
it decodes hardware event words, applies TDC/QDC/energy calibration,
clusters hits into gamma photons, and pairs photons into coincidences
within a configurable time window.`,
	}

	var logLevel, logFormat string
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")
	cobra.OnInitialize(func() {
		pipelog.Setup(pipelog.ParseLevel(logLevel), pipelog.Format(logFormat))
	})

	root.AddCommand(newRunCommand())
	root.AddCommand(newInspectIndexCommand())

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
