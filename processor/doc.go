// Package processor generates accessors for info proxy types.
//
// An info proxy is a struct type whose doc comment carries the InfoProxy
// marker annotation:
//
//	// FriendList exposes the friend list of the current user.
//	// @infoproxy.InfoProxy{ID: 3}
//	type FriendList struct{}
//
// For each such type, the processor generates a file named
// FriendList.InstanceGetter.g.go with an Instance method that fetches the
// proxy from the registry singleton. It also generates, once per package, a
// file named InfoModule.InfoProxyGetter.g.go that gives the registry type one
// GetFriendList style getter per proxy. The registry itself is hand-written;
// generated code only calls it.
//
// Processing a package is a pass. A pass has several stages:
//
// # Discovery
//
// Type declarations whose doc comments contain annotations are found with a
// purely syntactic check. Each of their annotations is then parsed on its
// own, and annotation names are resolved through the file's imports to find
// the marker. Types without the marker are ignored, as are other annotations,
// even ones that are not well-formed.
//
// # Extraction and Validation
//
// Extract checks that the declaration is eligible: a defined struct type
// without type parameters. Independently, the marker's arguments are checked
// against a Schema, which describes each argument's name, positional slot and
// type. The two results are Validation values. They are merged with Combine,
// which keeps the diagnostics of both, so a user sees every problem with a
// declaration at once.
//
// # Caching
//
// The inputs of each declaration are reduced to a DeclInput, which has no
// references into syntax trees or type-checker state. Its structural digest,
// with positions taken relative to the declaration, keys a Cache. So a pass
// only recomputes declarations that actually changed, and moving a
// declaration within its file does not invalidate it. A Cache can be backed by
// a DiskCache to share work across processes.
//
// # Rendering and Aggregation
//
// Valid declarations are rendered to Go source with the jennifer code
// generation library. The registry getters of all valid declarations are
// combined, in discovery order, into a single file that is produced even when
// there are none.
//
// # Reporting
//
// All diagnostics of a pass are handed to a Reporter and are also returned in
// the Result. Invalid declarations never prevent other declarations from
// being generated.
//
// The Load function loads packages with golang.org/x/tools/go/packages, and
// WriteResult writes the output of a pass next to the package's sources.
package processor
