package model

import (
	"bytes"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// GPUInfo describes the first visible CUDA device.
type GPUInfo struct {
	Name          string  `json:"name"`
	TotalMemoryMB float64 `json:"total_memory_mb"`
	FreeMemoryMB  float64 `json:"free_memory_mb"`
}

// EstimateVRAMMB estimates the training VRAM requirement in MB for a
// model of paramsB billion parameters at the given quantization level.
// Optimizer states and gradients are approximated as twice the adapter
// memory.
func EstimateVRAMMB(paramsB float64, bits int, adapterOverheadPct float64) float64 {
	bytesPerParam := float64(bits) / 8
	baseMB := paramsB * 1e9 * bytesPerParam / (1024 * 1024)
	adapterMB := baseMB * adapterOverheadPct
	trainingOverheadMB := adapterMB * 2
	return math.Round((baseMB+adapterMB+trainingOverheadMB)*10) / 10
}

// DetectGPU probes nvidia-smi for the first GPU. It returns nil, nil
// when no GPU (or no nvidia-smi) is present; training falls back to
// CPU in that case.
func DetectGPU() (*GPUInfo, error) {
	out, err := exec.Command("nvidia-smi",
		"--query-gpu=name,memory.total,memory.free",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil, nil
	}
	return parseGPUQuery(out)
}

func parseGPUQuery(out []byte) (*GPUInfo, error) {
	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte("\n"))
	fields := strings.Split(string(line), ",")
	if len(fields) != 3 {
		return nil, fmt.Errorf("parse nvidia-smi output %q", line)
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("parse gpu total memory: %w", err)
	}
	free, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return nil, fmt.Errorf("parse gpu free memory: %w", err)
	}
	return &GPUInfo{
		Name:          strings.TrimSpace(fields[0]),
		TotalMemoryMB: total,
		FreeMemoryMB:  free,
	}, nil
}
