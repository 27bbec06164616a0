package agent

import (
	"strings"

	"github.com/spf13/afero"
)

// Discover lists the hosts having a puppet reports directory: every
// directory of dir not starting with a dot. The result is sorted.
func Discover(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	hosts := make([]string, 0, len(entries))
	for _, fi := range entries {
		if fi.IsDir() && !strings.HasPrefix(fi.Name(), ".") {
			hosts = append(hosts, fi.Name())
		}
	}
	return hosts, nil
}
