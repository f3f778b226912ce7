package processor

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/dave/jennifer/jen"
)

const generatedHeader = "Code generated by infoproxygen. DO NOT EDIT."

const (
	instanceGetterSuffix = ".InstanceGetter.g.go"
	proxyGetterSuffix    = ".InfoProxyGetter.g.go"
)

// Artifact is a generated Go source file.
type Artifact struct {
	Filename string
	Source   []byte
}

// clone returns a copy of a that shares no memory with it.
func (a *Artifact) clone() *Artifact {
	if a == nil {
		return nil
	}
	return &Artifact{Filename: a.Filename, Source: bytes.Clone(a.Source)}
}

// InstanceGetterFilename returns the name of the file generated for the given
// info proxy type.
func InstanceGetterFilename(typeName string) string {
	return typeName + instanceGetterSuffix
}

// AggregatedFilename returns the name of the file that holds the registry's
// getter methods.
func AggregatedFilename(s Settings) string {
	return s.RegistryType + proxyGetterSuffix
}

// RenderInstanceGetter generates the file for a single info proxy type. It
// declares an Instance method on the type that fetches the proxy from the
// registry singleton:
//
//	func (FriendList) Instance() *FriendList {
//		return (*FriendList)(InfoModuleInstance().GetInfoProxyByID(3))
//	}
func RenderInstanceGetter(s Settings, info ValidatedProxyInfo) (Artifact, error) {
	name := info.Type.Name
	f := newFile(info.Type.Namespace, info.Type.Package)
	f.Add(jen.Commentf("Instance returns the %s info proxy registered under id %d.", name, info.ID).Line().
		Func().Params(jen.Id(name)).Id("Instance").Params().Op("*").Id(name).Block(
		jen.Return(proxyConversion(name, jen.Id(s.RegistryInstance).Call().Dot(s.RegistryLookup).Call(idLiteral(info.ID)))),
	))
	return render(f, InstanceGetterFilename(name))
}

// RenderDispatchGetter generates the registry getter method for a single info
// proxy type. The result is one declaration of the aggregated file.
func RenderDispatchGetter(s Settings, info ValidatedProxyInfo, receiver string) *jen.Statement {
	name := info.Type.Name
	return jen.Commentf("Get%s returns the %s info proxy.", name, name).Line().
		Func().Params(jen.Id(receiver).Op("*").Id(s.RegistryType)).Id("Get" + name).Params().Op("*").Id(name).Block(
		jen.Return(proxyConversion(name, jen.Id(receiver).Dot(s.RegistryLookup).Call(idLiteral(info.ID)))),
	)
}

func newFile(pkgPath, pkgName string) *jen.File {
	f := jen.NewFilePathName(pkgPath, pkgName)
	f.HeaderComment(generatedHeader)
	return f
}

// proxyConversion converts the unsafe.Pointer returned by the registry lookup
// to a pointer to the proxy type.
func proxyConversion(name string, lookup jen.Code) *jen.Statement {
	return jen.Parens(jen.Op("*").Id(name)).Call(lookup)
}

func idLiteral(id uint32) jen.Code {
	return jen.Id(strconv.FormatUint(uint64(id), 10))
}

func render(f *jen.File, filename string) (Artifact, error) {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return Artifact{}, fmt.Errorf("failed to render %s: %w", filename, err)
	}
	return Artifact{Filename: filename, Source: buf.Bytes()}, nil
}
