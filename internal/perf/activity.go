package perf

import (
	"fmt"
	"os"
	"time"
)

// FileActivitySource treats the modification time of a file as the last
// operator activity. Desktop integrations touch the file on input events;
// pointing it at a device node or session marker works the same way.
type FileActivitySource struct {
	Path string
}

// LastActivity returns the file's modification time.
func (f FileActivitySource) LastActivity() (time.Time, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat activity file: %w", err)
	}
	return info.ModTime(), nil
}
