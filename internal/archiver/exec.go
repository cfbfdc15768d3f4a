package archiver

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// expandAfterFetch turns an after-fetch template into argument vectors.
// $path expands to the downloaded file, $name to its base name. The
// expanded line is split on the literal token && into independent
// commands; no shell is involved, so no other metacharacters apply.
func expandAfterFetch(template, path string) [][]string {
	line := strings.ReplaceAll(template, "$path", path)
	line = strings.ReplaceAll(line, "$name", filepath.Base(path))

	var commands [][]string
	for _, segment := range strings.Split(line, "&&") {
		argv := strings.Fields(segment)
		if len(argv) == 0 {
			continue
		}
		commands = append(commands, argv)
	}
	return commands
}

// runAfterFetch runs each expanded command to completion, in order.
func (a *Archiver) runAfterFetch(template, path string) error {
	for _, argv := range expandAfterFetch(template, path) {
		a.log.Info().
			Strs("command", argv).
			Msg("running after-fetch exec")

		cmd := exec.Command(argv[0], argv[1:]...)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("after-fetch command %q failed: %w", strings.Join(argv, " "), err)
		}
	}
	return nil
}
