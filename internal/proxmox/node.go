package proxmox

// NodeStatus is the live resource snapshot of a node. CPU and Wait are
// load fractions between 0 and 1.
type NodeStatus struct {
	CPU     float64  `json:"cpu"`
	Wait    float64  `json:"wait"`
	CPUInfo CPUInfo  `json:"cpuinfo"`
	Memory  Capacity `json:"memory"`
	RootFS  Capacity `json:"rootfs"`
	Uptime  int64    `json:"uptime"`
}

// CPUInfo describes the node's processor. CPUs counts hardware threads.
type CPUInfo struct {
	Cores int `json:"cores"`
	CPUs  int `json:"cpus"`
}

// Capacity is a used/total byte pair for memory or storage.
type Capacity struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
}

// UsedGiB returns the used bytes in GiB.
func (c Capacity) UsedGiB() float64 { return gib(c.Used) }

// TotalGiB returns the total bytes in GiB.
func (c Capacity) TotalGiB() float64 { return gib(c.Total) }

// Percent returns the used share in percent, or 0 when the total is
// unknown.
func (c Capacity) Percent() float64 {
	if c.Total <= 0 {
		return 0
	}
	return float64(c.Used) / float64(c.Total) * 100
}

func gib(v int64) float64 {
	return float64(v) / (1 << 30)
}

// VersionInfo describes the Proxmox VE release running on the host.
type VersionInfo struct {
	Version string `json:"version"`
	Release string `json:"release"`
	RepoID  string `json:"repoid"`
}
