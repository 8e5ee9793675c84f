package raster

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/image/draw"
)

// Kernel names a resampling interpolator.
type Kernel string

const (
	// KernelNearest copies the nearest source pixel. Fast, blocky.
	KernelNearest Kernel = "nearest"

	// KernelBilinear interpolates linearly between neighbours.
	KernelBilinear Kernel = "bilinear"

	// KernelCatmullRom is the sharpest and slowest kernel.
	KernelCatmullRom Kernel = "catmullrom"
)

// DefaultKernel is used when no kernel is configured.
const DefaultKernel = KernelBilinear

// ErrUnknownKernel is returned by ParseKernel for unrecognised names.
var ErrUnknownKernel = errors.New("unknown resampling kernel")

// Kernels lists the supported kernels in documentation order.
func Kernels() []Kernel {
	return []Kernel{KernelNearest, KernelBilinear, KernelCatmullRom}
}

// ParseKernel converts a flag or config value into a Kernel.
// The empty string selects DefaultKernel.
func ParseKernel(s string) (Kernel, error) {
	switch k := Kernel(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return DefaultKernel, nil
	case KernelNearest, KernelBilinear, KernelCatmullRom:
		return k, nil
	case "catmull-rom":
		return KernelCatmullRom, nil
	default:
		return "", fmt.Errorf("%w: %q (want nearest, bilinear or catmullrom)", ErrUnknownKernel, s)
	}
}

// String implements fmt.Stringer.
func (k Kernel) String() string {
	return string(k)
}

func (k Kernel) interpolator() draw.Interpolator {
	switch k {
	case KernelNearest:
		return draw.NearestNeighbor
	case KernelCatmullRom:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}
