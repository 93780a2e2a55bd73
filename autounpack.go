// FILE: lixenwraith/forgeconfig/autounpack.go
package forgeconfig

import (
	"context"
	"errors"
)

// AutoUnpackNativesName is the registry name of the native-module unpack plugin
const AutoUnpackNativesName = "auto-unpack-natives"

const nativeModuleGlob = "**/*.node"

// ErrAsarRequired is returned when auto-unpack-natives runs without asar packaging
var ErrAsarRequired = errors.New("the auto-unpack-natives plugin requires packagerConfig.asar to be truthy or a record")

type autoUnpackNatives struct{}

// NewAutoUnpackNatives creates the plugin that adds native modules to the
// asar unpack glob. It takes no options.
func NewAutoUnpackNatives(any) (Plugin, error) {
	return autoUnpackNatives{}, nil
}

func (autoUnpackNatives) Name() string { return AutoUnpackNativesName }

func (p autoUnpackNatives) Hook(name string) HookFunc {
	if name == HookResolveForgeConfig {
		return p.resolveForgeConfig
	}
	return nil
}

func (autoUnpackNatives) resolveForgeConfig(_ context.Context, cfg *Node, _ ...any) error {
	packager, ok := cfg.Child(KeyPackagerConfig)
	if !ok {
		cfg.Set(KeyPackagerConfig, NewRecord())
		packager, _ = cfg.Child(KeyPackagerConfig)
	}

	asar := packager.Value("asar")
	if !truthy(asar) {
		return ErrAsarRequired
	}
	if _, isNode := asar.(*Node); !isNode {
		packager.Set("asar", NewRecord())
	}
	asarNode, _ := packager.Child("asar")

	existing, _ := asarNode.Value("unpack").(string)
	if existing != "" {
		asarNode.Set("unpack", "{"+existing+","+nativeModuleGlob+"}")
	} else {
		asarNode.Set("unpack", nativeModuleGlob)
	}
	return nil
}
