package app

import (
	"github.com/packden/packden/internal/config"
	"github.com/packden/packden/internal/registry"
	"github.com/packden/packden/modules/entrybundler"
	"github.com/packden/packden/modules/jsruntime"
	"github.com/packden/packden/modules/jstransform"
	"github.com/packden/packden/modules/namers"
	"github.com/packden/packden/modules/noderesolver"
)

// coreModules is the default capability set for a project. Tests swap in
// their own modules through NewApp's variadic parameter.
func coreModules(project *config.Project) []registry.Module {
	return []registry.Module{
		&noderesolver.Module{RootDir: project.RootDir},
		&jstransform.Module{},
		&entrybundler.Module{},
		&namers.Module{},
		&jsruntime.Module{},
	}
}
