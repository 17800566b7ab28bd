package pkgassemble

import (
	"context"
	"fmt"
	"path/filepath"

	buildErrors "github.com/pkger-build/pkger/build/errors"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/template"
)

// buildRpm assembles an RPM package under /root/rpmbuild, following the
// SPECS/SOURCES/RPMS layout rpmbuild expects.
func (a *Assembler) buildRpm(ctx context.Context, h *container.Handle, p Params) (string, error) {
	const rpmbldDir = "/root/rpmbuild"
	specsDir := rpmbldDir + "/SPECS"
	sourcesDir := rpmbldDir + "/SOURCES"
	rpmsDir := rpmbldDir + "/RPMS"
	srpmsDir := rpmbldDir + "/SRPMS"

	mkdir := fmt.Sprintf("mkdir -p %s %s %s %s", specsDir, sourcesDir, rpmsDir, srpmsDir)
	if _, err := h.CheckedExec(ctx, container.NewExecSpec(mkdir)); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "rpm", Reason: err}
	}

	sourceTar := fmt.Sprintf("%s-%s.tar.gz", p.Recipe.Name, p.Recipe.Version)
	tarCmd := fmt.Sprintf("tar -zcvf %s/%s %s", sourcesDir, sourceTar, p.ContainerOutDir)
	if _, err := h.CheckedExec(ctx, container.NewExecSpec(tarCmd)); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "rpm", Reason: err}
	}

	spec, err := a.renderer.Render("rpm-spec", template.RpmSpec, template.RpmSpecData{
		Name:    p.Recipe.Name,
		Version: p.Recipe.Version,
		Release: p.Recipe.Release,
	})
	if err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "rpm", Reason: err}
	}

	specName := p.Recipe.Name + ".spec"
	if err := uploadBytes(ctx, h, specsDir, specName, spec); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "rpm", Reason: err}
	}

	buildCmd := fmt.Sprintf("rpmbuild -bb %s/%s", specsDir, specName)
	if _, err := h.CheckedExec(ctx, container.NewExecSpec(buildCmd)); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "rpm", Reason: err}
	}

	rpmName := p.Recipe.PackageName(p.Target, p.Recipe.Arch) + ".rpm"
	packagePath := fmt.Sprintf("%s/%s/%s", rpmsDir, p.Recipe.Arch, rpmName)

	if err := a.signRpm(ctx, h, p, packagePath); err != nil {
		return "", err
	}

	if err := h.DownloadFiles(ctx, []string{packagePath}, p.OutputDir); err != nil {
		return "", &buildErrors.DownloadFailed{Path: packagePath, Reason: err}
	}
	return filepath.Join(p.OutputDir, rpmName), nil
}
