// Package buildsys declares the collaborators shared by the per-architecture
// build pipeline: toolchain and SDK discovery, shell execution, library
// merging, and the error kinds every stage reports.
package buildsys

import (
	"errors"
	"strings"
)

// Target identifies the destination OS family of a build, e.g. "ios".
type Target string

// IOS is the only target family the pipeline knows how to configure today.
const IOS Target = "ios"

// Variant selects between the device and simulator flavours of a platform SDK.
type Variant int

const (
	Device Variant = iota
	Simulator
)

func (v Variant) String() string {
	if v == Device {
		return "device"
	}
	return "simulator"
}

// SDKName returns the xcrun SDK name of the variant.
func (v Variant) SDKName() string {
	if v == Device {
		return "iphoneos"
	}
	return "iphonesimulator"
}

// DevicePrefix marks architectures that run on physical devices.
const DevicePrefix = "arm"

// VariantOf classifies an architecture name. Anything starting with
// DevicePrefix is a device architecture, everything else runs on the simulator.
func VariantOf(arch string) Variant {
	if strings.HasPrefix(arch, DevicePrefix) {
		return Device
	}
	return Simulator
}

// Error kinds. Concrete errors wrap one of these so callers can match them
// with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrToolNotFound  = errors.New("tool not found")
	ErrBootstrap     = errors.New("bootstrap failed")
	ErrBuild         = errors.New("build failed")
	ErrMerge         = errors.New("merge failed")
)

// Toolchain maps a logical tool name ("cc", "ld", "ranlib", ...) to the
// absolute path of the executable for the active host toolchain.
type Toolchain interface {
	Find(name string) (string, error)
}

// SDKLocator returns the filesystem root of the platform SDK for a variant.
type SDKLocator interface {
	SDKRoot(v Variant) (string, error)
}

// Shell runs a command line synchronously in dir. env overrides the
// inherited process environment. A non-zero exit is reported as an error.
type Shell interface {
	Exec(dir, command string, env map[string]string) error
}

// Merger combines single-architecture static libraries into outDir/name.
type Merger interface {
	Merge(inputs []string, outDir, name string) error
}
