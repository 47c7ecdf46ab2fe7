package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SQLite locking is unreliable on these.
var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

type detectFunc func(path string) (string, error)

// checkLocalFilesystem rejects journal paths that live on a network mount.
// Detection failures are not fatal; the journal is best effort.
func checkLocalFilesystem(path string, detect detectFunc) error {
	existing, err := nearestExistingPath(path)
	if err != nil {
		return fmt.Errorf("resolve journal path %q: %w", path, err)
	}

	fsType, err := detect(existing)
	if err != nil {
		return nil
	}
	if isNetworkFilesystem(fsType) {
		return fmt.Errorf("journal path %q is on network filesystem %q; set journal.path to a local file", path, fsType)
	}
	return nil
}

func nearestExistingPath(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	_, found := networkFilesystems[strings.ToLower(strings.TrimSpace(fsType))]
	return found
}
