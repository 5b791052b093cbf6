package telemetry

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/disk"
	"k8s.io/klog/v2"
)

// DeviceForDirectory finds the block device name (e.g. "sda1" or "nvme0n1")
// backing the given directory, so the Runtime Glue can point the disk
// collector at the device holding the weights file without the operator
// having to name it by hand.
func DeviceForDirectory(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("telemetry: absolute path for %s: %w", dir, err)
	}

	partitions, err := disk.Partitions(false)
	if err != nil {
		return "", fmt.Errorf("telemetry: list partitions: %w", err)
	}

	bestMatch := ""
	var bestPartition disk.PartitionStat
	for _, p := range partitions {
		if strings.HasPrefix(absDir, p.Mountpoint) && len(p.Mountpoint) > len(bestMatch) {
			bestMatch = p.Mountpoint
			bestPartition = p
		}
	}
	if bestMatch == "" {
		return "", fmt.Errorf("telemetry: no mount point found for directory %s", absDir)
	}
	return filepath.Base(bestPartition.Device), nil
}

// DiskCollector is a prometheus.Collector reporting read throughput (total
// bytes read and current read rate) for the device(s) backing the weights file — context for whether a slow
// prefetch is a saturated disk or a mapping problem.
type DiskCollector struct {
	mutex     sync.Mutex
	lastStats map[string]diskSample
	devices   map[string]struct{}

	readBytesTotalDesc *prometheus.Desc
	readRateDesc       *prometheus.Desc
	errorDesc          *prometheus.Desc
}

type diskSample struct {
	readBytes uint64
	time      time.Time
}

// NewDiskCollector watches the named devices, or every device gopsutil
// reports if devices is empty.
func NewDiskCollector(devices []string) *DiskCollector {
	deviceMap := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		deviceMap[d] = struct{}{}
	}
	return &DiskCollector{
		lastStats: make(map[string]diskSample),
		devices:   deviceMap,
		readBytesTotalDesc: prometheus.NewDesc("weightprefetch_disk_read_bytes_total",
			"Total bytes read from this disk.", []string{"device"}, nil),
		readRateDesc: prometheus.NewDesc("weightprefetch_disk_read_rate_bytes_per_second",
			"Current read rate in bytes per second for this disk.", []string{"device"}, nil),
		errorDesc: prometheus.NewDesc("weightprefetch_disk_collector_error",
			"Indicates an error occurred during disk stats collection.", nil, nil),
	}
}

func (c *DiskCollector) AddDevice(device string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.devices[device] = struct{}{}
}

func (c *DiskCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.readBytesTotalDesc
	ch <- c.readRateDesc
	ch <- c.errorDesc
}

func (c *DiskCollector) Collect(ch chan<- prometheus.Metric) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ioStats, err := disk.IOCounters()
	if err != nil {
		klog.Warningf("telemetry: disk IO counters: %v", err)
		ch <- prometheus.NewInvalidMetric(c.errorDesc, err)
		return
	}

	now := time.Now()
	for deviceName, stats := range ioStats {
		if len(c.devices) > 0 {
			if _, ok := c.devices[deviceName]; !ok {
				continue
			}
		}

		ch <- prometheus.MustNewConstMetric(c.readBytesTotalDesc, prometheus.CounterValue,
			float64(stats.ReadBytes), deviceName)

		if last, ok := c.lastStats[deviceName]; ok {
			duration := now.Sub(last.time).Seconds()
			if duration > 0 {
				rate := float64(stats.ReadBytes-last.readBytes) / duration
				if rate < 0 {
					rate = 0
				}
				ch <- prometheus.MustNewConstMetric(c.readRateDesc, prometheus.GaugeValue, rate, deviceName)
			}
		}
		c.lastStats[deviceName] = diskSample{readBytes: stats.ReadBytes, time: now}
	}
}
