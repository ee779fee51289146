package renderer

import "pdf-from-html/internal/config"

// New returns the engine selected by cfg.Renderer.Engine.
func New(cfg config.Config) Engine {
	if cfg.Renderer.Engine == config.EngineChrome {
		return &Chrome{
			ExecPath:  cfg.Renderer.ChromePath,
			NoSandbox: cfg.Renderer.ChromeNoSandbox,
			Timeout:   cfg.Renderer.Timeout,
		}
	}
	return NewWkhtmltopdf(cfg.Renderer.Binary, cfg.Renderer.Timeout, cfg.Renderer.FailOnExitCode)
}
