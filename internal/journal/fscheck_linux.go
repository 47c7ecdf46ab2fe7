//go:build linux

package journal

import "syscall"

var linuxFilesystemMagic = map[uint32]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x517B:     "smbfs",
	0xFE534D42: "smb2",
}

func detectFilesystemType(path string) (string, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return "", err
	}
	if name, ok := linuxFilesystemMagic[uint32(stat.Type)]; ok {
		return name, nil
	}
	return "local", nil
}
