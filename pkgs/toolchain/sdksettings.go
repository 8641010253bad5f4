package toolchain

import (
	"bytes"
	"os"
	"path/filepath"

	"howett.net/plist"
)

// SDKSettingsFile is the property list every Apple platform SDK ships at its root.
const SDKSettingsFile = "SDKSettings.plist"

// SDKSettings is the subset of SDKSettings.plist the build cares about.
type SDKSettings struct {
	CanonicalName           string `plist:"CanonicalName"`
	DisplayName             string `plist:"DisplayName"`
	Version                 string `plist:"Version"`
	DefaultDeploymentTarget string `plist:"DefaultDeploymentTarget"`
}

// ReadSDKSettings decodes <root>/SDKSettings.plist.
func ReadSDKSettings(root string) (*SDKSettings, error) {
	data, err := os.ReadFile(filepath.Join(root, SDKSettingsFile))
	if err != nil {
		return nil, err
	}
	var s SDKSettings
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
