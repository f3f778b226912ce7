// Package infoproxy defines the marker annotation recognized by the
// infoproxygen code generator, along with a small runtime registry that
// generated code can use to record proxy identifiers.
//
// A struct type becomes an info proxy by annotating its declaration with
// @infoproxy.InfoProxy and supplying its numeric identifier:
//
//	import _ "github.com/jhump/infoproxy"
//
//	// FriendList is the info proxy backing the friend list.
//	//
//	// @infoproxy.InfoProxy{ID: 3}
//	type FriendList struct {
//	    ...
//	}
//
// The identifier may also be given positionally, as @infoproxy.InfoProxy(3)
// or @infoproxy.InfoProxy{3}. It may be a literal or the name of a constant.
//
// Running infoproxygen on the package then produces two kinds of files. For
// every valid proxy, a file named <TypeName>.InstanceGetter.g.go declares an
// Instance method that looks up the proxy through the registry singleton. And
// one file named InfoModule.InfoProxyGetter.g.go adds a Get<TypeName> method
// to the registry type for every proxy in the package.
//
// The registry itself is not provided by this package. The package being
// processed is expected to declare it, for example:
//
//	type InfoModule struct { ... }
//
//	func InfoModuleInstance() *InfoModule { ... }
//
//	func (m *InfoModule) GetInfoProxyByID(id uint32) unsafe.Pointer { ... }
//
// The names of the type, the singleton accessor, and the lookup method are
// configurable.
package infoproxy

// InfoProxy is the marker annotation. Its only field is the proxy's identifier.
type InfoProxy struct {
	// ID is the key passed to the registry lookup. When the annotation has no
	// field names, the first positional value is used.
	ID uint32
}

// MarkerName is the fully-qualified name of the InfoProxy annotation type, as
// the generator resolves it from doc comments.
const MarkerName = "github.com/jhump/infoproxy.InfoProxy"
