// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package resource

// ManifestAccessor is the narrow surface a Side-by-Side Assembly
// manifest (an RT_MANIFEST resource) would expose if this package parsed
// its XML, per the non-goal that excludes manifest parsing from this
// core. It exists so a caller can plug in their own XML-backed
// implementation (e.g. encoding/xml against the raw manifest bytes
// returned by Directory.GetDataByID) without this package needing to
// carry an XML dependency for a feature outside its scope.
type ManifestAccessor interface {
	// RequestedExecutionLevel returns the asInvoker/highestAvailable/
	// requireAdministrator value from the manifest's
	// requestedPrivileges element, or "" if absent.
	RequestedExecutionLevel() string

	// DependentAssemblies returns the name attribute of each
	// dependency/dependentAssembly/assemblyIdentity element.
	DependentAssemblies() []string
}
