//go:build !linux

package journal

import "errors"

func detectFilesystemType(string) (string, error) {
	return "", errors.New("filesystem detection is unsupported on this platform")
}
