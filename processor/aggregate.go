package processor

// Aggregate generates the file that gives the registry type one getter method
// per info proxy. Getters appear in the order of infos, which is the order the
// types were discovered. The file is produced even when there are no proxies,
// so that a previously generated file never lingers with stale getters.
func Aggregate(s Settings, pkgPath, pkgName string, infos []ValidatedProxyInfo) (Artifact, error) {
	f := newFile(pkgPath, pkgName)
	recv := receiverName(infos)
	for i, info := range infos {
		if i > 0 {
			f.Line()
		}
		f.Add(RenderDispatchGetter(s, info, recv))
	}
	return render(f, AggregatedFilename(s))
}

// receiverName picks a name for the registry receiver that does not shadow any
// proxy type referenced in the method bodies.
func receiverName(infos []ValidatedProxyInfo) string {
	names := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		names[info.Type.Name] = struct{}{}
	}
	recv := "m"
	for {
		if _, ok := names[recv]; !ok {
			return recv
		}
		recv += "_"
	}
}
