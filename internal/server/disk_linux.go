//go:build linux

package server

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// diskUsage reports the used fraction of the filesystem at path as a
// percentage string, "unknown" if statfs fails.
func diskUsage(path string) string {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "unknown"
	}
	if st.Blocks == 0 {
		return "unknown"
	}
	used := st.Blocks - st.Bfree
	return fmt.Sprintf("%d%%", used*100/st.Blocks)
}
