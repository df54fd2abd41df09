package graph

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"
)

// Device describes the host CPU a session computes on.
type Device struct {
	Name          string
	Vendor        string
	PhysicalCores int
	LogicalCores  int
	AVX2          bool
	FMA3          bool
	AVX512        bool
}

// HostDevice probes the current CPU.
func HostDevice() Device {
	c := cpuid.CPU
	return Device{
		Name:          c.BrandName,
		Vendor:        c.VendorString,
		PhysicalCores: c.PhysicalCores,
		LogicalCores:  c.LogicalCores,
		AVX2:          c.Supports(cpuid.AVX2),
		FMA3:          c.Supports(cpuid.FMA3),
		AVX512:        c.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
	}
}

func (d Device) String() string {
	name := d.Name
	if name == "" {
		name = "unknown cpu"
	}
	return fmt.Sprintf("%s (%d cores/%d threads, avx2=%v fma=%v avx512=%v)",
		name, d.PhysicalCores, d.LogicalCores, d.AVX2, d.FMA3, d.AVX512)
}
