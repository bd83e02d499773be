// Package project resolves project roots and loads their task descriptors.
//
// A project root is any directory holding a .tasklist descriptor. Roots are
// resolved in three tiers: an explicit override root, then the answer of a
// Locator for the caller's working directory, then a configured default
// root. A tier only counts when its directory actually holds a descriptor.
//
// # Descriptor format
//
// The descriptor is a nested list document that is read, never evaluated:
//
//	((common :cwd "build/"
//	         :env ("CC=clang")
//	         :window "*%project*"
//	         :shell "nix-shell --run '%s'"
//	         :variables (("project" . "demo")))
//	 (tasks
//	  (build :name "Build %1" :command ("make" "%1") :default-args ("all"))
//	  (test  :command ("go" "test" "./...") :display none)))
//
// The common and tasks sections may also appear as two top-level forms.
// Unknown keys are ignored.
//
// # Session state
//
// The override and default roots form the session. SessionStore persists
// them as TOML under an advisory file lock so concurrent invocations do not
// clobber each other.
//
// # Usage
//
//	store := project.NewStore(project.WithLocator(project.NewMarkerLocator()))
//	sess := &project.Session{}
//	root, err := store.ResolveRoot(sess, cwd)
//	if err != nil {
//	    return err
//	}
//	desc, err := store.Load(root)
package project
