package template

// DebControl is the deb control file template: consumes the recipe's
// name, version and arch and the installed-size figure computed from
// `du -s` in out-dir (spec.md §4.H). The image name is not part of its
// data.
const DebControl = `Package: {{.Name}}
Version: {{.Version}}
Architecture: {{.Arch}}
Maintainer: pkger
Installed-Size: {{.InstalledSize}}
Description: {{.Name}} {{.Version}}
`

// RpmSpec is the RPM spec file template.
const RpmSpec = `Name: {{.Name}}
Version: {{.Version}}
Release: {{.Release}}
Summary: {{.Name}} {{.Version}}
License: unspecified
Source0: {{.Name}}-{{.Version}}.tar.gz

%description
{{.Name}} {{.Version}}

%prep
%setup -q -n {{.Name}}-{{.Version}}

%build

%install
mkdir -p %{buildroot}
cp -a . %{buildroot}/

%files
/*
`

// PkgBuild is the Arch PKGBUILD template.
const PkgBuild = `pkgname={{.Name}}
pkgver={{.Version}}
pkgrel={{.Release}}
arch=('{{.Arch}}')
source=("{{.Name}}-{{.Version}}.tar.gz")
md5sums=('{{.MD5Sum}}')

package() {
  cp -a "$srcdir"/* "$pkgdir"/
}
`

// DepCachedDockerfile is the second-stage Dockerfile template driving
// the dependency-cached image (spec.md §4.D).
const DepCachedDockerfile = `FROM {{.Image}}:latest
ENV DEBIAN_FRONTEND noninteractive
RUN {{.PMName}} {{.CleanCacheArgs}}
RUN {{.PMName}} {{.UpdateReposArgs}}
RUN {{.PMName}} {{.InstallArgs}}
`

// DebControlData is the data DebControl consumes.
type DebControlData struct {
	Name          string
	Version       string
	Arch          string
	InstalledSize string
}

// RpmSpecData is the data RpmSpec consumes.
type RpmSpecData struct {
	Name    string
	Version string
	Release string
}

// PkgBuildData is the data PkgBuild consumes.
type PkgBuildData struct {
	Name    string
	Version string
	Release string
	Arch    string
	MD5Sum  string
}

// DepCachedDockerfileData is the data DepCachedDockerfile consumes.
type DepCachedDockerfileData struct {
	Image           string
	PMName          string
	CleanCacheArgs  string
	UpdateReposArgs string
	InstallArgs     string
}
