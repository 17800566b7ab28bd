package image

import "testing"

func TestParseOSRelease(t *testing.T) {
	content := "NAME=\"Ubuntu\"\nID=ubuntu\nVERSION_ID=\"20.04\"\n"
	os := ParseOSRelease(content)
	if os.Name != "ubuntu" || os.Version != "20.04" {
		t.Fatalf("ParseOSRelease = %+v", os)
	}
}

func TestPackageManagerDispatch(t *testing.T) {
	cases := map[string]string{
		"ubuntu":  "apt-get",
		"debian":  "apt-get",
		"fedora":  "dnf",
		"amzn":    "yum",
		"alpine":  "apk",
		"arch":    "pacman",
		"unknown": "",
	}
	for distro, wantBinary := range cases {
		pm := Os{Name: distro}.PackageManager()
		if pm.Name() != wantBinary {
			t.Fatalf("PackageManager(%q).Name() = %q, want %q", distro, pm.Name(), wantBinary)
		}
	}
}

func TestAptInstallArgs(t *testing.T) {
	pm := Os{Name: "debian"}.PackageManager()
	args := pm.Install([]string{"make", "gcc"})
	if len(args) != 4 || args[0] != "install" {
		t.Fatalf("unexpected install args: %v", args)
	}
}
