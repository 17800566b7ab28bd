package recipe

import "testing"

func TestParseBuildTarget(t *testing.T) {
	cases := map[string]BuildTarget{
		"deb":  Deb,
		"rpm":  Rpm,
		"pkg":  Pkg,
		"gzip": Gzip,
	}
	for in, want := range cases {
		got, err := ParseBuildTarget(in)
		if err != nil {
			t.Fatalf("ParseBuildTarget(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseBuildTarget(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseBuildTarget("msi"); err == nil {
		t.Fatal("expected error for unknown build target")
	}
}

func TestPackageName(t *testing.T) {
	r := &Recipe{Name: "htop", Version: "3.0.5", Release: "1"}
	if got, want := r.PackageName(Deb, "amd64"), "htop-3.0.5-1.amd64"; got != want {
		t.Fatalf("PackageName(Deb) = %q, want %q", got, want)
	}
	if got, want := r.PackageName(Gzip, "amd64"), "htop-3.0.5"; got != want {
		t.Fatalf("PackageName(Gzip) = %q, want %q", got, want)
	}

	noRelease := &Recipe{Name: "htop", Version: "3.0.5"}
	if got, want := noRelease.PackageName(Deb, "amd64"), "htop-3.0.5.amd64"; got != want {
		t.Fatalf("PackageName(Deb, no release) = %q, want %q", got, want)
	}
}

func TestResolvedDepends(t *testing.T) {
	r := &Recipe{
		BuildDepends: map[string][]string{
			"":             {"make", "gcc"},
			"ubuntu:20.04": {"make", "libssl-dev"},
		},
	}
	got := r.ResolvedDepends("ubuntu:20.04")
	want := map[string]bool{"make": true, "libssl-dev": true}
	if len(got) != len(want) {
		t.Fatalf("ResolvedDepends = %v, want keys %v", got, want)
	}
	for _, g := range got {
		if !want[g] {
			t.Fatalf("unexpected dependency %q", g)
		}
	}

	defaultOnly := r.ResolvedDepends("debian:11")
	if len(defaultOnly) != 2 {
		t.Fatalf("ResolvedDepends(default) = %v, want 2 entries", defaultOnly)
	}
}

func TestScriptStepAppliesToImage(t *testing.T) {
	all := ScriptStep{Cmd: "make"}
	if !all.AppliesToImage("ubuntu:20.04") {
		t.Fatal("empty Images list should apply to all images")
	}

	scoped := ScriptStep{Cmd: "make", Images: []string{"ubuntu:20.04"}}
	if !scoped.AppliesToImage("ubuntu:20.04") {
		t.Fatal("expected scoped step to apply to its listed image")
	}
	if scoped.AppliesToImage("debian:11") {
		t.Fatal("expected scoped step to not apply to an unlisted image")
	}
}
