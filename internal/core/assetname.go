package core

import (
	"slices"
	"strings"

	"autobuild/internal/types"
)

type AssetKind string

const (
	AssetKindPackage AssetKind = "package"
	AssetKindSource  AssetKind = "source"
	AssetKindMarker  AssetKind = "marker"
	AssetKindOther   AssetKind = "other"
)

// AssetName is a published file name split into its parts.
type AssetName struct {
	Package string
	Version string
	Arch    string
	Kind    AssetKind
}

// ParseAssetName splits a published file name. Package files look like
// name-pkgver-pkgrel-arch.pkg.tar.ext, source archives like
// name-pkgver-pkgrel.src.tar.ext and markers like name-version.failed.
func ParseAssetName(file string) AssetName {
	switch {
	case IsPackageFile(file):
		stem := file[:strings.Index(file, ".pkg.tar.")]
		fields := strings.Split(stem, "-")
		if len(fields) < 4 {
			break
		}
		n := len(fields)
		return AssetName{
			Package: strings.Join(fields[:n-3], "-"),
			Version: fields[n-3] + "-" + fields[n-2],
			Arch:    fields[n-1],
			Kind:    AssetKindPackage,
		}
	case IsSourceArchive(file):
		stem := file[:strings.Index(file, ".src.tar.")]
		fields := strings.Split(stem, "-")
		if len(fields) < 3 {
			break
		}
		n := len(fields)
		return AssetName{
			Package: strings.Join(fields[:n-2], "-"),
			Version: fields[n-2] + "-" + fields[n-1],
			Kind:    AssetKindSource,
		}
	case strings.HasSuffix(file, failureMarkerSuffix):
		stem := strings.TrimSuffix(file, failureMarkerSuffix)
		fields := strings.Split(stem, "-")
		if len(fields) < 3 {
			break
		}
		n := len(fields)
		return AssetName{
			Package: strings.Join(fields[:n-2], "-"),
			Version: fields[n-2] + "-" + fields[n-1],
			Kind:    AssetKindMarker,
		}
	}
	return AssetName{Package: file, Kind: AssetKindOther}
}

// SortAssets orders assets by package name, then by package version
// (newest first), then by file name.
func SortAssets(assets []types.Asset) {
	cache := newVersionCache()
	slices.SortStableFunc(assets, func(a types.Asset, b types.Asset) int {
		left := ParseAssetName(a.Name)
		right := ParseAssetName(b.Name)
		if c := strings.Compare(left.Package, right.Package); c != 0 {
			return c
		}
		if left.Version != right.Version {
			return -cache.compare(left.Version, right.Version)
		}
		return strings.Compare(a.Name, b.Name)
	})
}
