package testkit

import (
	"portmesh/internal/pluginhost"
	"portmesh/pkg/pluginapi"
)

// Extension wraps plugin as a *pluginhost.Extension registered under
// name, ready for Manager.Inject. Its library handle is never opened —
// there is no real file behind it — so DestroyFn is the only cleanup
// UnloadAll will perform.
func Extension(name string, plugin pluginapi.Plugin) *pluginhost.Extension {
	return &pluginhost.Extension{
		Path:      name + ".so",
		Library:   &pluginhost.Library{},
		DestroyFn: func(pluginapi.Plugin) {},
		Instance:  plugin,
	}
}
