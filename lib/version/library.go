// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"sync"
)

var (
	buildInfoOnce sync.Once
	buildInfo     *debug.BuildInfo
)

func readBuildInfo() *debug.BuildInfo {
	buildInfoOnce.Do(func() {
		buildInfo, _ = debug.ReadBuildInfo()
	})
	return buildInfo
}

// Library returns the version of the module providing the package at
// pkgPath, or "" when it cannot be determined. Packages in the main
// module report the main module's version, or [Version] for
// development builds.
func Library(pkgPath string) string {
	return libraryFrom(readBuildInfo(), pkgPath)
}

func libraryFrom(info *debug.BuildInfo, pkgPath string) string {
	if info == nil || pkgPath == "" {
		return ""
	}

	best, bestVersion := "", ""
	consider := func(module *debug.Module) {
		if module == nil || !within(pkgPath, module.Path) || len(module.Path) <= len(best) {
			return
		}
		best, bestVersion = module.Path, module.Version
		if module.Replace != nil && module.Replace.Version != "" {
			bestVersion = module.Replace.Version
		}
	}
	consider(&info.Main)
	for _, dependency := range info.Deps {
		consider(dependency)
	}

	if best == info.Main.Path && (bestVersion == "" || bestVersion == "(devel)") {
		return Version
	}
	return bestVersion
}

// within reports whether pkgPath is modulePath or a package below it.
func within(pkgPath, modulePath string) bool {
	return pkgPath == modulePath || strings.HasPrefix(pkgPath, modulePath+"/")
}
