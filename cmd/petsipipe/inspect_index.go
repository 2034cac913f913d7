package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petsys-go/petsipipe/internal/config"
	"github.com/petsys-go/petsipipe/internal/event"
	"github.com/petsys-go/petsipipe/internal/raw"
	"github.com/petsys-go/petsipipe/internal/sink"
)

func newInspectIndexCommand() *cobra.Command {
	var dataPath, idxfPath, tmpfPath string

	cmd := &cobra.Command{
		Use:   "inspect-index",
		Short: "Print a raw file's header and frame-accounting counters without running the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := raw.Open(raw.Options{
				DataPath:      dataPath,
				IdxfPath:      idxfPath,
				TmpfPath:      tmpfPath,
				TimeReference: config.TimeReferenceSync,
			})
			if err != nil {
				return err
			}
			defer r.Close()

			h := r.Header()
			fmt.Printf("frequency=%.3fHz trigger_id=%d daq_sync_epoch=%.3f file_creation_time=%d\n",
				h.Frequency, h.TriggerID, h.DAQSynchronizationEpoch, h.FileCreationDAQTime)

			var discard sink.Null[event.UndecodedHit]
			if err := r.Run(discard); err != nil {
				return err
			}
			c := r.Counters()
			fmt.Printf("frames=%d frames_lost_all=%d frames_lost_partial=%d events_no_lost=%d events_some_lost=%d malformed=%d\n",
				c.Frames, c.FramesLost0, c.FramesLostN, c.EventsNoLost, c.EventsSomeLost, c.Malformed)
			if id, ok := r.FrameID(); ok {
				fmt.Printf("last_frame_id=%d\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "path to the raw acquisition data file")
	cmd.Flags().StringVar(&idxfPath, "idxf", "", "path to the closed-out step index (.idxf)")
	cmd.Flags().StringVar(&tmpfPath, "tmpf", "", "path to the in-progress step index (.tmpf)")
	cmd.MarkFlagRequired("data")

	return cmd
}
