package pkgassemble

import (
	"context"
	"fmt"
	"strings"

	buildErrors "github.com/pkger-build/pkger/build/errors"
	"github.com/pkger-build/pkger/container"
)

// signDeb imports the configured GPG key (if any) and invokes dpkg-sig
// against packagePath.
func (a *Assembler) signDeb(ctx context.Context, h *container.Handle, p Params, packagePath string) error {
	return a.sign(ctx, h, p, packagePath, func(keyID, passphrase string) string {
		return fmt.Sprintf(`dpkg-sig -k %s -g "--pinentry-mode=loopback --passphrase %s" --sign %s %s`,
			keyID, passphrase, strings.ToLower(p.GPGKeyName), packagePath)
	})
}

// signRpm imports the configured GPG key (if any) and invokes
// `rpm --addsign` against packagePath.
func (a *Assembler) signRpm(ctx context.Context, h *container.Handle, p Params, packagePath string) error {
	return a.sign(ctx, h, p, packagePath, func(keyID, passphrase string) string {
		return fmt.Sprintf(`rpm --addsign %s`, packagePath)
	})
}

// sign uploads the key, imports it, discovers its key id from
// `gpg --list-keys --with-colons`, and runs the target-specific signing
// command built is the given signCmd closure. It is a no-op when no GPG
// key is configured.
func (a *Assembler) sign(ctx context.Context, h *container.Handle, p Params, packagePath string, signCmd func(keyID, passphrase string) string) error {
	if p.GPGKeyName == "" {
		return nil
	}

	keyBytes, passphrase, err := a.keys.Key(p.GPGKeyName)
	if err != nil {
		return &buildErrors.SigningFailed{Package: packagePath, Reason: err}
	}

	keyFile := p.TmpDir + "/GPG-SIGN-KEY"
	if err := uploadBytes(ctx, h, p.TmpDir, "GPG-SIGN-KEY", keyBytes); err != nil {
		return &buildErrors.SigningFailed{Package: packagePath, Reason: err}
	}

	importCmd := fmt.Sprintf("gpg --pinentry-mode=loopback --passphrase %s --import %s", passphrase, keyFile)
	if _, err := h.CheckedExec(ctx, container.NewExecSpec(importCmd)); err != nil {
		return &buildErrors.SigningFailed{Package: packagePath, Reason: err}
	}

	out, err := h.CheckedExec(ctx, container.NewExecSpec("gpg --list-keys --with-colons"))
	if err != nil {
		return &buildErrors.SigningFailed{Package: packagePath, Reason: err}
	}
	keyID := findKeyID(out.Stdout, p.GPGKeyName)

	if _, err := h.CheckedExec(ctx, container.NewExecSpec(signCmd(keyID, passphrase))); err != nil {
		return &buildErrors.SigningFailed{Package: packagePath, Reason: err}
	}
	return nil
}

// findKeyID scans `gpg --list-keys --with-colons` output for a line
// containing name and returns its column 8 (0-indexed 7).
func findKeyID(lines []string, name string) string {
	for _, line := range lines {
		if !strings.Contains(line, name) {
			continue
		}
		cols := strings.Split(line, ":")
		if len(cols) > 7 {
			return cols[7]
		}
	}
	return ""
}
