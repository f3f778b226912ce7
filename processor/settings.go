package processor

import (
	"fmt"
	"go/token"
	"strings"

	"go.uber.org/multierr"

	"github.com/jhump/infoproxy"
)

// Settings control the names used by generated code. The registry type, its
// singleton accessor and its lookup method are supplied by the package being
// processed; generated code only calls them.
type Settings struct {
	// Marker is the fully-qualified name of the marker annotation, such as
	// "github.com/jhump/infoproxy.InfoProxy".
	Marker string
	// RegistryType is the name of the registry type that receives one
	// getter method per info proxy.
	RegistryType string
	// RegistryInstance is the name of the function that returns the
	// registry singleton.
	RegistryInstance string
	// RegistryLookup is the name of the registry method that returns the
	// proxy for an identifier, as an unsafe.Pointer.
	RegistryLookup string
	// Register, if true, also produces a file that records each proxy's
	// identifier with the infoproxy runtime registry.
	Register bool
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		Marker:           infoproxy.MarkerName,
		RegistryType:     "InfoModule",
		RegistryInstance: "InfoModuleInstance",
		RegistryLookup:   "GetInfoProxyByID",
	}
}

// Validate checks that all names in the settings are usable in generated code.
func (s Settings) Validate() error {
	dot := strings.LastIndexByte(s.Marker, '.')
	if dot <= 0 || !token.IsIdentifier(s.Marker[dot+1:]) {
		return fmt.Errorf("marker %q is not a qualified type name", s.Marker)
	}
	var err error
	for _, n := range []struct{ what, name string }{
		{"registry type", s.RegistryType},
		{"registry instance", s.RegistryInstance},
		{"registry lookup", s.RegistryLookup},
	} {
		if !token.IsIdentifier(n.name) {
			err = multierr.Append(err, fmt.Errorf("%s %q is not a valid identifier", n.what, n.name))
		}
	}
	return err
}
