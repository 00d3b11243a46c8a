package spaceInformations

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// Usage is the disk usage of a store path in bytes.
type Usage struct {
	Path       string
	Device     string
	MountPoint string
	Total      uint64
	Free       uint64
	Used       uint64
	Store      int64 // Bytes used by files below Path
}

// getDiskUsageStats gets the disk usage statistics of the given path
func getDiskUsageStats(path string) (disk syscall.Statfs_t, err error) {
	err = syscall.Statfs(path, &disk)
	return
}

// CalculateDirectorySize calculates the total size of files within a directory
func CalculateDirectorySize(path string) (size int64, err error) {
	err = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return
}

// GetDeviceAndMountPoint finds the partition holding path, or the closest
// existing parent of path.
func GetDeviceAndMountPoint(path string) (string, string, error) {
	partitions, err := disk.Partitions(true)
	if err != nil {
		return "", "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}

	matchPath := absPath
	foundExisting := false
	current := absPath
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			current = resolved
		}

		_, infoErr := os.Stat(current)
		if infoErr == nil {
			matchPath = current
			foundExisting = true
			break
		}
		if !os.IsNotExist(infoErr) {
			return "", "", infoErr
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	if !foundExisting {
		return "", "", fmt.Errorf("path does not exist: %s", path)
	}
	if matchPath == string(os.PathSeparator) && matchPath != absPath {
		return "", "", fmt.Errorf("path does not exist beyond root: %s", path)
	}

	// The longest mount point containing the path wins.
	var best disk.PartitionStat
	for _, partition := range partitions {
		if contains(matchPath, partition.Mountpoint) && len(partition.Mountpoint) > len(best.Mountpoint) {
			best = partition
		}
	}
	if best.Mountpoint == "" {
		return "", "", fmt.Errorf("mount point not found for path: %s", path)
	}
	return best.Mountpoint, best.Device, nil
}

// contains checks if a path is within the mount point.
func contains(path, mountpoint string) bool {
	if mountpoint == "" {
		return false
	}

	p := filepath.Clean(path)
	m := filepath.Clean(mountpoint)

	if m == string(os.PathSeparator) {
		return true
	}
	if p == m {
		return true
	}

	return strings.HasPrefix(p, strings.TrimSuffix(m, string(os.PathSeparator))+string(os.PathSeparator))
}

// GetUsage collects the disk usage of path.
func GetUsage(path string) (Usage, error) {
	stat, err := getDiskUsageStats(path)
	if err != nil {
		return Usage{}, fmt.Errorf("error retrieving disk usage stats: %w", err)
	}
	mountPoint, device, err := GetDeviceAndMountPoint(path)
	if err != nil {
		return Usage{}, fmt.Errorf("error finding device and mount point: %w", err)
	}
	size, err := CalculateDirectorySize(path)
	if err != nil {
		return Usage{}, fmt.Errorf("error calculating directory size: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	return Usage{
		Path:       path,
		Device:     device,
		MountPoint: mountPoint,
		Total:      total,
		Free:       free,
		Used:       total - free,
		Store:      size,
	}, nil
}

func gb(b uint64) string {
	return fmt.Sprintf("%.2f", float64(b)/1e9)
}

// DisplayDiskUsage logs the disk usage of every path.
func DisplayDiskUsage(log logrus.FieldLogger, paths []string) error {
	if len(paths) == 0 {
		log.Error("No path provided in configuration")
		return fmt.Errorf("no path provided in configuration")
	}

	for _, path := range paths {
		u, err := GetUsage(path)
		if err != nil {
			log.WithField("path", path).WithError(err).Error("Error retrieving disk usage")
			return err
		}

		log.WithFields(logrus.Fields{
			"Path":        u.Path,
			"Device":      u.Device,
			"Mount Point": u.MountPoint,
			"Total (GB)":  gb(u.Total),
			"Used (GB)":   gb(u.Used),
			"Free (GB)":   gb(u.Free),
			"Usage by DB": gb(uint64(u.Store)),
		}).Info("Disk Usage information for path")
	}

	return nil
}
