package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Paths names the calibration table files a Load call may open. Fields
// left empty are simply skipped even if their corresponding TableMask bit
// is set, except where the bit makes the table mandatory (TDC, QDC,
// ChannelMap, and TriggerMap when ChannelMap is also selected) per §4.9's
// "any missing required table yields a clean termination of the loader
// with a diagnostic". The trigger map is read only when the ChannelMap bit
// is set, and the energy table only when the QDC bit is set.
type Paths struct {
	TDCCalibration        string
	QDCCalibration        string
	EnergyCalibration     string
	TimeOffsetCalibration string
	ChannelMap            string
	TriggerMap            string
}

// Load builds a SystemConfig from the tables named in paths, restricted to
// the tables selected by mask. It returns an error rather than a partial
// config when a table required by mask is missing or malformed, matching
// the "loader refuses to produce a config" contract in §7.
func Load(paths Paths, mask TableMask) (*SystemConfig, error) {
	c := New()

	if mask.has(LoadTDCCalibration) {
		if paths.TDCCalibration == "" {
			return nil, fmt.Errorf("config: tdc_calibration_table required by mask but not specified")
		}
		if err := loadTDCCalibration(c, paths.TDCCalibration); err != nil {
			return nil, fmt.Errorf("config: loading TDC calibration: %w", err)
		}
		c.HasTDCCalibration = true
	}

	if mask.has(LoadQDCCalibration) {
		if paths.QDCCalibration == "" {
			return nil, fmt.Errorf("config: qdc_calibration_table required by mask but not specified")
		}
		if err := loadQDCCalibration(c, paths.QDCCalibration); err != nil {
			return nil, fmt.Errorf("config: loading QDC calibration: %w", err)
		}
		c.HasQDCCalibration = true

		if mask.has(LoadEnergyCalibration) && paths.EnergyCalibration != "" {
			if err := loadEnergyCalibration(c, paths.EnergyCalibration); err != nil {
				return nil, fmt.Errorf("config: loading energy calibration: %w", err)
			}
			c.HasEnergyCalibration = true
		}
	}

	if mask.has(LoadChannelMap) {
		if paths.ChannelMap == "" {
			return nil, fmt.Errorf("config: channel_map required by mask but not specified")
		}
		if err := loadChannelMap(c, paths.ChannelMap); err != nil {
			return nil, fmt.Errorf("config: loading channel map: %w", err)
		}
		c.HasChannelMap = true

		if mask.has(LoadTriggerMap) {
			if paths.TriggerMap == "" {
				return nil, fmt.Errorf("config: trigger_map required by mask but not specified")
			}
			if err := loadTriggerMap(c, paths.TriggerMap); err != nil {
				return nil, fmt.Errorf("config: loading trigger map: %w", err)
			}
		}
	}

	if mask.has(LoadTimeOffsetCalibration) && paths.TimeOffsetCalibration != "" {
		if err := loadTimeOffsetCalibration(c, paths.TimeOffsetCalibration); err != nil {
			return nil, fmt.Errorf("config: loading time offset calibration: %w", err)
		}
		c.HasTimeOffsetCalibration = true
	}

	return c, nil
}

// normalizeLine strips a trailing '#' comment, trims surrounding
// whitespace, and collapses internal whitespace runs to single tabs, the
// way the source's normalizeLine does before the tables are tokenised.
func normalizeLine(line string) string {
	line = strings.ReplaceAll(line, "\r", "")
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	return strings.Join(fields, "\t")
}

func eachTableLine(path string, fn func(fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := normalizeLine(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(strings.Split(line, "\t")); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func parseUint(s string) (uint64, error)  { return strconv.ParseUint(s, 10, 64) }
func parseInt(s string) (int64, error)    { return strconv.ParseInt(s, 10, 64) }
func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// loadTDCCalibration reads "port slave chip channel tac branch t0 a0 a1 a2".
func loadTDCCalibration(c *SystemConfig, path string) error {
	return eachTableLine(path, func(f []string) error {
		if len(f) != 10 {
			return nil
		}
		port, e1 := parseUint(f[0])
		slave, e2 := parseUint(f[1])
		chip, e3 := parseUint(f[2])
		channel, e4 := parseUint(f[3])
		tac, e5 := parseUint(f[4])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || tac > 3 {
			return nil
		}
		branch := strings.ToUpper(f[5])
		t0, e6 := parseFloat(f[6])
		a0, e7 := parseFloat(f[7])
		a1, e8 := parseFloat(f[8])
		a2, e9 := parseFloat(f[9])
		if e6 != nil || e7 != nil || e8 != nil || e9 != nil {
			return nil
		}
		gid := MakeGID(port, slave, chip, channel)
		cc := c.touch(gid)
		tc := TacConfig{T0: t0, M: a0, TB: a1, A2: a2}
		switch branch {
		case "T":
			cc.TacT[tac] = tc
		case "E":
			cc.TacE[tac] = tc
		}
		return nil
	})
}

// loadQDCCalibration reads "port slave chip channel tac p0..p9".
func loadQDCCalibration(c *SystemConfig, path string) error {
	return eachTableLine(path, func(f []string) error {
		if len(f) != 15 {
			return nil
		}
		port, e1 := parseUint(f[0])
		slave, e2 := parseUint(f[1])
		chip, e3 := parseUint(f[2])
		channel, e4 := parseUint(f[3])
		tac, e5 := parseUint(f[4])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || tac > 3 {
			return nil
		}
		var p [10]float64
		for i := 0; i < 10; i++ {
			v, err := parseFloat(f[5+i])
			if err != nil {
				return nil
			}
			p[i] = v
		}
		gid := MakeGID(port, slave, chip, channel)
		cc := c.touch(gid)
		cc.Qac[tac] = QacConfig{P: p}
		return nil
	})
}

// loadEnergyCalibration reads "port slave chip channel tac p0..p3".
func loadEnergyCalibration(c *SystemConfig, path string) error {
	return eachTableLine(path, func(f []string) error {
		if len(f) != 9 {
			return nil
		}
		port, e1 := parseUint(f[0])
		slave, e2 := parseUint(f[1])
		chip, e3 := parseUint(f[2])
		channel, e4 := parseUint(f[3])
		tac, e5 := parseUint(f[4])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || tac > 3 {
			return nil
		}
		var p [4]float64
		for i := 0; i < 4; i++ {
			v, err := parseFloat(f[5+i])
			if err != nil {
				return nil
			}
			p[i] = v
		}
		gid := MakeGID(port, slave, chip, channel)
		cc := c.touch(gid)
		cc.ECal[tac] = EnergyConfig{P: p}
		return nil
	})
}

// loadTimeOffsetCalibration reads "port slave chip channel t0".
func loadTimeOffsetCalibration(c *SystemConfig, path string) error {
	return eachTableLine(path, func(f []string) error {
		if len(f) != 5 {
			return nil
		}
		port, e1 := parseUint(f[0])
		slave, e2 := parseUint(f[1])
		chip, e3 := parseUint(f[2])
		channel, e4 := parseInt(f[3])
		t0, e5 := parseFloat(f[4])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
			return nil
		}
		gid := MakeGID(port, slave, chip, uint64(channel))
		cc := c.touch(gid)
		cc.TimeOffset = t0
		return nil
	})
}

// loadChannelMap reads "port slave chip channel region xi yi x y z".
func loadChannelMap(c *SystemConfig, path string) error {
	return eachTableLine(path, func(f []string) error {
		if len(f) != 10 {
			return nil
		}
		port, e1 := parseUint(f[0])
		slave, e2 := parseUint(f[1])
		chip, e3 := parseUint(f[2])
		channel, e4 := parseUint(f[3])
		region, e5 := parseInt(f[4])
		xi, e6 := parseInt(f[5])
		yi, e7 := parseInt(f[6])
		x, e8 := parseFloat(f[7])
		y, e9 := parseFloat(f[8])
		z, e10 := parseFloat(f[9])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil ||
			e6 != nil || e7 != nil || e8 != nil || e9 != nil || e10 != nil {
			return nil
		}
		gid := MakeGID(port, slave, chip, channel)
		cc := c.touch(gid)
		cc.Region = int32(region)
		cc.Xi = int32(xi)
		cc.Yi = int32(yi)
		cc.X, cc.Y, cc.Z = x, y, z
		return nil
	})
}

// loadTriggerMap reads "region1 region2 kind" (kind in {C, M}) and enforces
// symmetry by writing both (r1,r2) and (r2,r1) for whichever matrix kind
// selects.
func loadTriggerMap(c *SystemConfig, path string) error {
	lineNo := 0
	return eachTableLine(path, func(f []string) error {
		lineNo++
		if len(f) != 3 {
			return fmt.Errorf("trigger map line %d: expected 3 fields, got %d", lineNo, len(f))
		}
		r1, e1 := parseInt(f[0])
		r2, e2 := parseInt(f[1])
		if e1 != nil || e2 != nil {
			return fmt.Errorf("trigger map line %d: region ids must be integers", lineNo)
		}
		if r1 < 0 || r1 >= MaxTriggerRegions || r2 < 0 || r2 >= MaxTriggerRegions {
			return fmt.Errorf("trigger map line %d: region id out of range [0,%d)", lineNo, MaxTriggerRegions)
		}
		kind := strings.ToUpper(strings.TrimSpace(f[2]))
		if kind != "M" && kind != "C" {
			return fmt.Errorf("trigger map line %d: kind must be M or C", lineNo)
		}
		existingC := c.IsCoincidenceAllowed(int32(r1), int32(r2))
		existingM := c.IsMultiHitAllowed(int32(r1), int32(r2))
		if kind == "C" {
			existingC = true
		} else {
			existingM = true
		}
		c.setTriggerPair(int32(r1), int32(r2), existingC, existingM)
		return nil
	})
}
