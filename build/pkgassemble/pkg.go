package pkgassemble

import (
	"context"
	"fmt"
	"path/filepath"

	buildErrors "github.com/pkger-build/pkger/build/errors"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/template"
)

const pkgBuildUser = "builduser"

// buildPkg assembles an Arch PKGBUILD package: archive the out-dir as
// the package source tarball, render a PKGBUILD around it, and run
// makepkg as an unprivileged build user.
func (a *Assembler) buildPkg(ctx context.Context, h *container.Handle, p Params) (string, error) {
	name := p.Recipe.PackageName(p.Target, p.Recipe.Arch)

	tmpDir := fmt.Sprintf("/tmp/%s", name)
	srcDir := tmpDir + "/src"
	bldDir := tmpDir + "/bld"

	mkdir := fmt.Sprintf("mkdir -p %s %s %s", tmpDir, bldDir, srcDir)
	if _, err := h.CheckedExec(ctx, container.NewExecSpec(mkdir)); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "pkg", Reason: err}
	}

	if _, err := h.CheckedExec(ctx, container.NewExecSpec(fmt.Sprintf("cp -rv . %s", srcDir)).WithWorkingDir(p.ContainerOutDir)); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "pkg", Reason: err}
	}

	sourceTarName := name + ".tar.gz"
	sourceTarPath := bldDir + "/" + sourceTarName
	if _, err := h.CheckedExec(ctx, container.NewExecSpec(fmt.Sprintf("tar -zcvf %s .", sourceTarPath)).WithWorkingDir(srcDir)); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "pkg", Reason: err}
	}

	sumOut, err := h.CheckedExec(ctx, container.NewExecSpec(fmt.Sprintf("md5sum %s", sourceTarPath)))
	if err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "pkg", Reason: err}
	}
	sum := firstField(joinLines(sumOut.Stdout))

	pkgbuild, err := a.renderer.Render("pkgbuild", template.PkgBuild, template.PkgBuildData{
		Name:    p.Recipe.Name,
		Version: p.Recipe.Version,
		Release: p.Recipe.Release,
		Arch:    p.Recipe.Arch,
		MD5Sum:  sum,
	})
	if err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "pkg", Reason: err}
	}

	if err := uploadBytes(ctx, h, bldDir, "PKGBUILD", pkgbuild); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "pkg", Reason: err}
	}

	steps := []string{
		fmt.Sprintf("useradd -m %s", pkgBuildUser),
		fmt.Sprintf("passwd -d %s", pkgBuildUser),
		fmt.Sprintf("chown -Rv %s:%s .", pkgBuildUser, pkgBuildUser),
		"chmod 644 PKGBUILD",
	}
	for _, step := range steps {
		if _, err := h.CheckedExec(ctx, container.NewExecSpec(step).WithWorkingDir(bldDir)); err != nil {
			return "", &buildErrors.PackageBuildFailed{Target: "pkg", Reason: err}
		}
	}
	if _, err := h.CheckedExec(ctx, container.NewExecSpec("makepkg").WithWorkingDir(bldDir).WithUser(pkgBuildUser)); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "pkg", Reason: err}
	}

	pkgName := name + ".pkg.tar.zst"
	pkgPath := bldDir + "/" + pkgName

	if err := h.DownloadFiles(ctx, []string{pkgPath}, p.OutputDir); err != nil {
		return "", &buildErrors.DownloadFailed{Path: pkgPath, Reason: err}
	}
	return filepath.Join(p.OutputDir, pkgName), nil
}
