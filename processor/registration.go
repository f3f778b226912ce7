package processor

import (
	"bytes"
	"fmt"
	"go/types"

	"github.com/jhump/gopoet"
)

// RegistrationFilename is the name of the file that registers a package's
// info proxies with the infoproxy runtime.
const RegistrationFilename = "infoproxy.gen.go"

const runtimePackagePath = "github.com/jhump/infoproxy"

var (
	reflectTypeOf = gopoet.PackageForGoType(types.NewPackage("reflect", "reflect")).Symbol("TypeOf")
	registerProxy = gopoet.PackageForGoType(types.NewPackage(runtimePackagePath, "infoproxy")).Symbol("RegisterProxy")
)

// RenderRegistration generates a file with an init function that records the
// identifier of every given info proxy with infoproxy.RegisterProxy, so they
// can be queried at runtime with infoproxy.ProxyID.
func RenderRegistration(pkgPath, pkgName string, infos []ValidatedProxyInfo) (Artifact, error) {
	file := gopoet.NewGoFile(RegistrationFilename, pkgPath, pkgName)
	self := gopoet.PackageForGoType(types.NewPackage(pkgPath, pkgName))

	initFunc := gopoet.NewFunc("init")
	for _, info := range infos {
		initFunc.Printf("%s(", registerProxy)
		initFunc.Printf("%s((*%s)(nil)).Elem()", reflectTypeOf, self.Symbol(info.Type.Name))
		initFunc.Printlnf(", %d)", info.ID)
	}
	file.AddElement(initFunc)

	var buf bytes.Buffer
	if err := gopoet.WriteGoFile(&buf, file); err != nil {
		return Artifact{}, fmt.Errorf("failed to render %s: %w", RegistrationFilename, err)
	}
	return Artifact{Filename: RegistrationFilename, Source: buf.Bytes()}, nil
}
