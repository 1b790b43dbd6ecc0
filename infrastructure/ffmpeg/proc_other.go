//go:build !unix

package ffmpeg

import "os/exec"

// configureProcessGroup keeps the default exec behavior of killing only the child
func configureProcessGroup(cmd *exec.Cmd) {}
