package runner

import (
	"fmt"
	"os/exec"
	"runtime"
)

// lookPathFunc matches exec.LookPath; swapped out in tests.
type lookPathFunc func(file string) (string, error)

// resolveShell returns the argv prefix that runs a command string through the
// platform interpreter. On Windows modern PowerShell (pwsh) is preferred over
// Windows PowerShell; everywhere else the POSIX /bin/sh is used.
func resolveShell(goos string, lookPath lookPathFunc) ([]string, error) {
	if goos != "windows" {
		return []string{"/bin/sh", "-c"}, nil
	}
	for _, name := range []string{"pwsh", "powershell"} {
		if path, err := lookPath(name); err == nil {
			return []string{path, "-NoProfile", "-NonInteractive", "-Command"}, nil
		}
	}
	return nil, fmt.Errorf("%w: PowerShell (pwsh or powershell) is not installed or not in PATH", ErrShellNotFound)
}

func defaultShell() ([]string, error) {
	return resolveShell(runtime.GOOS, exec.LookPath)
}
