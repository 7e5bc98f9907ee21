package core

import (
	"fmt"
	"path"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"autobuild/internal/types"
)

const (
	packageFilePattern   = "*.pkg.tar.*"
	sourceArchivePattern = "*.src.tar.*"
	failureMarkerSuffix  = ".failed"
	repoNamePrefix       = "autobuild-"
	repoDBSuffix         = ".db.tar.gz"
	sourcesSubdir        = "sources"
	systemArch           = "x86_64"
)

// extensionArchPrefixes maps extension package name prefixes to the
// architecture subdirectory their files are staged in.
var extensionArchPrefixes = []struct {
	prefix string
	arch   string
}{
	{prefix: "mingw-w64-x86_64-", arch: "x86_64"},
	{prefix: "mingw-w64-i686-", arch: "i686"},
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)

// ArtifactPattern matches the installable package files of one produced
// package at an exact version.
func ArtifactPattern(name string, version string) string {
	return fmt.Sprintf("%s-%s-%s", globEscaper.Replace(name), globEscaper.Replace(version), packageFilePattern)
}

// StagingPattern matches the file staged for a dependency.
func StagingPattern(name string, version string) string {
	return fmt.Sprintf("%s-%s-*.pkg.*", globEscaper.Replace(name), globEscaper.Replace(version))
}

// FailureMarkerName is the asset recording a permanent build failure of one
// produced package at an exact version.
func FailureMarkerName(name string, version string) string {
	return fmt.Sprintf("%s-%s%s", name, version, failureMarkerSuffix)
}

// RetentionPatterns match every asset still relevant to a queue entry: its
// packages, its source archive and its failure markers.
func RetentionPatterns(entry types.QueueEntry) []string {
	version := globEscaper.Replace(entry.Version)
	patterns := []string{fmt.Sprintf("%s-%s*", globEscaper.Replace(entry.Name), version)}
	for _, item := range entry.Packages {
		patterns = append(patterns, fmt.Sprintf("%s-%s*", globEscaper.Replace(item), version))
	}
	return patterns
}

// Match reports whether name matches the shell pattern. Malformed patterns
// never match.
func Match(pattern string, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// MatchAny reports whether any of names matches pattern.
func MatchAny(names []string, pattern string) bool {
	for _, name := range names {
		if Match(pattern, name) {
			return true
		}
	}
	return false
}

func IsPackageFile(name string) bool {
	return Match(packageFilePattern, name)
}

func IsSourceArchive(name string) bool {
	return Match(sourceArchivePattern, name)
}

// IsBuildOutput reports whether a file in a package directory is something
// the build publishes.
func IsBuildOutput(name string) bool {
	return IsPackageFile(name) || IsSourceArchive(name)
}

// RepoSubdir returns the local repository subdirectory, relative to a
// staging or fetch root, that an asset of the channel belongs in.
func RepoSubdir(channel types.Channel, assetName string) (string, error) {
	base := channel.Dir()
	switch channel {
	case types.ChannelSystem:
		switch {
		case IsPackageFile(assetName):
			return path.Join(base, systemArch), nil
		case IsSourceArchive(assetName):
			return path.Join(base, sourcesSubdir), nil
		}
	case types.ChannelExtension:
		if IsSourceArchive(assetName) {
			return path.Join(base, sourcesSubdir), nil
		}
		for _, candidate := range extensionArchPrefixes {
			if strings.HasPrefix(assetName, candidate.prefix) {
				return path.Join(base, candidate.arch), nil
			}
		}
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("unknown file type: %s in %s", assetName, channel))
}

// RepoName is the package manager repository name for a staging
// subdirectory, e.g. "system/x86_64" becomes "autobuild-system-x86_64".
func RepoName(subdir string) string {
	return repoNamePrefix + strings.ReplaceAll(strings.ReplaceAll(subdir, "/", "-"), `\`, "-")
}

// RepoDBName is the index file name inside a staging subdirectory.
func RepoDBName(subdir string) string {
	return RepoName(subdir) + repoDBSuffix
}

var sourceDirNames = map[string]string{
	"MINGW-packages": "M",
	"MSYS2-packages": "S",
}

// SourceDir is the checkout directory name for a source repository,
// shortened for the well known ones to keep build paths short.
func SourceDir(repo string) string {
	if short, ok := sourceDirNames[repo]; ok {
		return short
	}
	return repo
}
