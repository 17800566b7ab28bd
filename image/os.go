package image

import (
	"strings"
)

// Os identifies a Linux distribution by name and version, as sniffed from
// /etc/os-release inside a freshly built image (spec.md §4.D).
type Os struct {
	Name    string
	Version string
}

// PackageManager knows the argument triples spec.md §4.D's second-stage
// Dockerfile needs: cleaning the package cache, updating repository
// metadata, and installing a list of packages.
type PackageManager interface {
	// Name is the executable name, e.g. "apt-get".
	Name() string
	CleanCache() []string
	UpdateRepos() []string
	Install(packages []string) []string
}

type aptPackageManager struct{}

func (aptPackageManager) Name() string         { return "apt-get" }
func (aptPackageManager) CleanCache() []string { return []string{"clean"} }
func (aptPackageManager) UpdateRepos() []string {
	return []string{"update"}
}
func (aptPackageManager) Install(pkgs []string) []string {
	return append([]string{"install", "-y"}, pkgs...)
}

type dnfPackageManager struct{ binary string }

func (d dnfPackageManager) Name() string          { return d.binary }
func (dnfPackageManager) CleanCache() []string    { return []string{"clean", "all"} }
func (dnfPackageManager) UpdateRepos() []string   { return []string{"makecache"} }
func (dnfPackageManager) Install(pkgs []string) []string {
	return append([]string{"install", "-y"}, pkgs...)
}

type apkPackageManager struct{}

func (apkPackageManager) Name() string           { return "apk" }
func (apkPackageManager) CleanCache() []string   { return []string{"cache", "clean"} }
func (apkPackageManager) UpdateRepos() []string  { return []string{"update"} }
func (apkPackageManager) Install(pkgs []string) []string {
	return append([]string{"add", "--no-cache"}, pkgs...)
}

type pacmanPackageManager struct{}

func (pacmanPackageManager) Name() string          { return "pacman" }
func (pacmanPackageManager) CleanCache() []string  { return []string{"-Scc", "--noconfirm"} }
func (pacmanPackageManager) UpdateRepos() []string { return []string{"-Sy", "--noconfirm"} }
func (pacmanPackageManager) Install(pkgs []string) []string {
	return append([]string{"-S", "--noconfirm"}, pkgs...)
}

// noopPackageManager is returned for an unrecognized OS so that callers
// can detect "no package manager found for this os" the way
// create_cache in the original pkger does, rather than panicking.
type noopPackageManager struct{}

func (noopPackageManager) Name() string                     { return "" }
func (noopPackageManager) CleanCache() []string              { return nil }
func (noopPackageManager) UpdateRepos() []string             { return nil }
func (noopPackageManager) Install(pkgs []string) []string    { return nil }

// PackageManager maps the sniffed OS to its package manager.
func (o Os) PackageManager() PackageManager {
	switch strings.ToLower(o.Name) {
	case "debian", "ubuntu", "raspbian":
		return aptPackageManager{}
	case "fedora", "centos", "rhel", "rocky", "almalinux":
		return dnfPackageManager{binary: "dnf"}
	case "amzn":
		return dnfPackageManager{binary: "yum"}
	case "alpine":
		return apkPackageManager{}
	case "arch", "archlinux", "manjaro":
		return pacmanPackageManager{}
	default:
		return noopPackageManager{}
	}
}

// ParseOSRelease parses the contents of /etc/os-release (ID= and
// VERSION_ID= lines, stripping surrounding quotes), as produced by the
// one-shot `cat /etc/issue /etc/os-release` container spec.md §4.D runs
// after every fresh image build.
func ParseOSRelease(content string) Os {
	os := Os{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "ID="):
			os.Name = unquote(strings.TrimPrefix(line, "ID="))
		case strings.HasPrefix(line, "VERSION_ID="):
			os.Version = unquote(strings.TrimPrefix(line, "VERSION_ID="))
		}
	}
	return os
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, `'`)
	return s
}
