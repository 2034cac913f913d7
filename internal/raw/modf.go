package raw

import (
	"bufio"
	"fmt"
	"os"
)

// loadModf reads a per-channel QDC-mode override table: one "channelID
// mode" line per line, mode being 0 (time-over-threshold) or 1 (charge
// integration). The result is indexable directly by channel id.
func loadModf(path string) ([]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raw: opening .modf: %w", err)
	}
	defer f.Close()

	var modes []bool
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := normalizeLine(sc.Text())
		if line == "" {
			continue
		}
		var channelID uint64
		var mode int
		if _, err := fmt.Sscanf(line, "%d\t%d", &channelID, &mode); err != nil {
			continue
		}
		for uint64(len(modes)) <= channelID {
			modes = append(modes, false)
		}
		modes[channelID] = mode != 0
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return modes, nil
}
