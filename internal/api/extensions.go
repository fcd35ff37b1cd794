package api

import (
	"log/slog"
	"net/http"

	"github.com/dcgate/dcgate/internal/domain"
)

var extensionSubscriptions = []string{
	"extension_added",
	"extension_removed",
	"extension_started",
	"extension_stopped",
}

// Extension names come from npm-style package names, so plain words are not
// enough: allow digits, dots and hyphens too.
var extensionNameParam = RegexParam(`[a-z0-9._-]+`)

// ExtensionsModule manages engine extensions. All operations require an
// admin principal.
type ExtensionsModule struct {
	*Module
	extensions domain.ExtensionManager
}

// NewExtensionsModule builds the extension management module.
func NewExtensionsModule(log *slog.Logger, extensions domain.ExtensionManager) *ExtensionsModule {
	m := &ExtensionsModule{
		Module:     NewModule(log.With("module", "extensions"), 0),
		extensions: extensions,
	}
	m.CreateSubscription(extensionSubscriptions...)

	m.Handle("extensions", http.MethodGet, nil, false, adminOnly(m.handleGetExtensions))
	m.Handle("extensions", http.MethodPost, nil, true, adminOnly(m.handleInstall))
	m.Handle("extensions", http.MethodGet, []ParamMatcher{extensionNameParam}, false, adminOnly(m.handleGetExtension))
	m.Handle("extensions", http.MethodDelete, []ParamMatcher{extensionNameParam}, false, adminOnly(m.handleRemove))
	m.Handle("extensions", http.MethodPost, []ParamMatcher{extensionNameParam, ExactParam("start")}, false, adminOnly(m.handleStart))
	m.Handle("extensions", http.MethodPost, []ParamMatcher{extensionNameParam, ExactParam("stop")}, false, adminOnly(m.handleStop))

	m.extensions.AddExtensionListener(m)
	return m
}

// Destroy unregisters the engine listener before the module goes away.
func (m *ExtensionsModule) Destroy() {
	m.extensions.RemoveExtensionListener(m)
}

// adminOnly rejects non-admin principals before the wrapped handler runs.
func adminOnly(fn HandlerFunc) HandlerFunc {
	return func(req *Request) (any, error) {
		if req.Session == nil || !req.Session.IsAdmin() {
			return nil, ErrForbidden
		}
		return fn(req)
	}
}

func (m *ExtensionsModule) handleGetExtensions(req *Request) (any, error) {
	return m.extensions.Extensions(), nil
}

func (m *ExtensionsModule) handleGetExtension(req *Request) (any, error) {
	return m.extensions.Extension(req.Param(0))
}

func (m *ExtensionsModule) handleInstall(req *Request) (any, error) {
	name, err := requiredField[string](req.Body, "name")
	if err != nil {
		return nil, err
	}
	url, err := optionalField[string](req.Body, "url")
	if err != nil {
		return nil, err
	}
	return m.extensions.Install(name, url)
}

func (m *ExtensionsModule) handleRemove(req *Request) (any, error) {
	return nil, m.extensions.Remove(req.Param(0))
}

func (m *ExtensionsModule) handleStart(req *Request) (any, error) {
	return nil, m.extensions.Start(req.Param(0))
}

func (m *ExtensionsModule) handleStop(req *Request) (any, error) {
	return nil, m.extensions.Stop(req.Param(0))
}

// ExtensionAdded announces a newly installed extension.
func (m *ExtensionsModule) ExtensionAdded(ext domain.Extension) {
	m.Send("extension_added", ext)
}

// ExtensionRemoved announces a removed extension.
func (m *ExtensionsModule) ExtensionRemoved(ext domain.Extension) {
	m.Send("extension_removed", map[string]any{"name": ext.Name})
}

// ExtensionStarted announces an extension starting up.
func (m *ExtensionsModule) ExtensionStarted(ext domain.Extension) {
	m.Send("extension_started", map[string]any{"name": ext.Name})
}

// ExtensionStopped announces an extension shutting down.
func (m *ExtensionsModule) ExtensionStopped(ext domain.Extension) {
	m.Send("extension_stopped", map[string]any{"name": ext.Name})
}
