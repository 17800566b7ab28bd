package pkgassemble

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"context"

	buildErrors "github.com/pkger-build/pkger/build/errors"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/template"
)

// buildDeb assembles a Debian package, following the dpkg-deb/control
// layout under /root/debbuild that the original pkger uses.
func (a *Assembler) buildDeb(ctx context.Context, h *container.Handle, p Params) (string, error) {
	name := p.Recipe.PackageName(p.Target, p.Recipe.Arch)

	debbldDir := "/root/debbuild"
	baseDir := debbldDir + "/" + name
	debianDir := baseDir + "/DEBIAN"

	if _, err := h.CheckedExec(ctx, container.NewExecSpec(fmt.Sprintf("mkdir -p %s %s/tmp", debianDir, debbldDir))); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "deb", Reason: err}
	}

	sizeOut, err := h.CheckedExec(ctx, container.NewExecSpec("du -s .").WithWorkingDir(p.ContainerOutDir))
	if err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "deb", Reason: err}
	}
	size := firstField(joinLines(sizeOut.Stdout))

	control, err := a.renderer.Render("deb-control", template.DebControl, template.DebControlData{
		Name:          p.Recipe.Name,
		Version:       p.Recipe.Version,
		Arch:          p.Recipe.Arch,
		InstalledSize: size,
	})
	if err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "deb", Reason: err}
	}

	if p.Recipe.Deb != nil && p.Recipe.Deb.PostinstScript != "" {
		if err := uploadBytes(ctx, h, debianDir, "postinst", []byte(p.Recipe.Deb.PostinstScript)); err != nil {
			return "", &buildErrors.PackageBuildFailed{Target: "deb", Reason: err}
		}
		if _, err := h.CheckedExec(ctx, container.NewExecSpec("chmod 0755 postinst").WithWorkingDir(debianDir)); err != nil {
			return "", &buildErrors.PackageBuildFailed{Target: "deb", Reason: err}
		}
	}

	if err := uploadBytes(ctx, h, debianDir, "control", control); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "deb", Reason: err}
	}

	if _, err := h.CheckedExec(ctx, container.NewExecSpec(fmt.Sprintf("cp -rv . %s", baseDir)).WithWorkingDir(p.ContainerOutDir)); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "deb", Reason: err}
	}

	dpkgDebOpts := "--build"
	if v, convErr := strconv.Atoi(p.ImageState.OS.Version); convErr == nil && v >= 10 {
		dpkgDebOpts = "--build --root-owner-group"
	}
	if _, err := h.CheckedExec(ctx, container.NewExecSpec(fmt.Sprintf("dpkg-deb %s %s", dpkgDebOpts, baseDir))); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "deb", Reason: err}
	}

	debName := name + ".deb"
	packagePath := debbldDir + "/" + debName

	if err := a.signDeb(ctx, h, p, packagePath); err != nil {
		return "", err
	}

	if err := h.DownloadFiles(ctx, []string{packagePath}, p.OutputDir); err != nil {
		return "", &buildErrors.DownloadFailed{Path: packagePath, Reason: err}
	}
	return filepath.Join(p.OutputDir, debName), nil
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
