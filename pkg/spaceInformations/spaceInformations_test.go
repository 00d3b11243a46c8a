package spaceInformations

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDeviceAndMountPointPicksLongestMount(t *testing.T) {
	partitions, err := disk.Partitions(true)
	if err != nil || len(partitions) == 0 {
		t.Skip("no partitions available on this system")
	}

	temp := t.TempDir()
	absTemp, err := filepath.EvalSymlinks(temp)
	require.NoError(t, err)

	var expected disk.PartitionStat
	for _, p := range partitions {
		if contains(absTemp, p.Mountpoint) && len(p.Mountpoint) > len(expected.Mountpoint) {
			expected = p
		}
	}
	if expected.Mountpoint == "" {
		t.Skipf("no partition with a mountpoint covering temp dir %q", absTemp)
	}

	mountPoint, device, err := GetDeviceAndMountPoint(filepath.Join(temp, "some", "sub", "path"))
	require.NoError(t, err)
	assert.Equal(t, expected.Mountpoint, mountPoint)
	assert.Equal(t, expected.Device, device)
}

func TestContains(t *testing.T) {
	assert.True(t, contains("/var/lib/data", "/"))
	assert.True(t, contains("/var/lib/data", "/var/lib"))
	assert.True(t, contains("/var/lib", "/var/lib/"))
	assert.False(t, contains("/var/library", "/var/lib"))
	assert.False(t, contains("/var/lib", ""))
}

func TestCalculateDirectorySize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 23), 0o600))

	size, err := CalculateDirectorySize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(123), size)

	_, err = CalculateDirectorySize(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDisplayDiskUsage(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	assert.Error(t, DisplayDiskUsage(log, nil))

	partitions, err := disk.Partitions(true)
	if err != nil || len(partitions) == 0 {
		t.Skip("no partitions available on this system")
	}
	if err := DisplayDiskUsage(log, []string{t.TempDir()}); err != nil {
		t.Skipf("disk usage unavailable here: %v", err)
	}
	assert.Contains(t, buf.String(), "Disk Usage information for path")
}
