package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadTDCAndQDCCalibration(t *testing.T) {
	dir := t.TempDir()
	tdc := writeFile(t, dir, "tdc.tsv", "# comment\n0\t0\t0\t0\t0\tT\t0\t0\t0\t1\n0\t0\t0\t0\t0\tE\t0\t0\t0\t1\n")
	qdc := writeFile(t, dir, "qdc.tsv", "0\t0\t0\t0\t0\t0\t1\t0\t0\t0\t0\t0\t0\t0\t0\n")

	c, err := Load(Paths{TDCCalibration: tdc, QDCCalibration: qdc}, LoadTDCCalibration|LoadQDCCalibration)
	require.NoError(t, err)
	require.True(t, c.HasTDCCalibration)
	require.True(t, c.HasQDCCalibration)

	gid := MakeGID(0, 0, 0, 0)
	cc := c.ChannelConfig(gid)
	require.Equal(t, 1.0, cc.TacT[0].A2)
	require.Equal(t, 1.0, cc.Qac[0].P[1])
}

func TestLoadMissingRequiredTableFails(t *testing.T) {
	_, err := Load(Paths{}, LoadTDCCalibration)
	require.Error(t, err)
}

func TestTriggerMapSymmetryAndNegativeShortCircuit(t *testing.T) {
	dir := t.TempDir()
	cm := writeFile(t, dir, "cmap.tsv", "0\t0\t0\t0\t1\t0\t0\t0\t0\t0\n0\t0\t0\t1\t2\t0\t0\t0\t0\t0\n")
	tm := writeFile(t, dir, "tmap.tsv", "1\t2\tC\n")

	c, err := Load(Paths{ChannelMap: cm, TriggerMap: tm}, LoadChannelMap|LoadTriggerMap)
	require.NoError(t, err)

	require.True(t, c.IsCoincidenceAllowed(1, 2))
	require.True(t, c.IsCoincidenceAllowed(2, 1))
	require.False(t, c.IsMultiHitAllowed(1, 2))
	require.False(t, c.IsCoincidenceAllowed(-1, 2))
}

func TestChannelConfigDefaultsToDisabledRegion(t *testing.T) {
	c := New()
	cc := c.ChannelConfig(MakeGID(9, 9, 9, 9))
	require.Equal(t, int32(-1), cc.Region)
}
