//go:build linux

package sg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Unit is one logical unit discovered through sysfs
type Unit struct {
	Name    string // sg node name, e.g. sg0
	Path    string // device node, e.g. /dev/sg0
	Host    int
	Channel int
	Target  int
	Lun     uint64
}

func (u Unit) target() []byte {
	return encodeTarget(uint32(u.Target), uint32(u.Channel))
}

// String renders the unit in the kernel's H:C:T:L notation
func (u Unit) String() string {
	return fmt.Sprintf("%d:%d:%d:%d", u.Host, u.Channel, u.Target, u.Lun)
}

// Scanner finds sg nodes through sysfs
type Scanner struct {
	sysfsPath string
	devPath   string
}

// NewScanner creates a scanner over the live system
func NewScanner() *Scanner {
	return &Scanner{
		sysfsPath: "/sys/class/scsi_generic",
		devPath:   "/dev",
	}
}

// NewScannerAt creates a scanner rooted at alternative sysfs and dev directories
func NewScannerAt(sysfsPath, devPath string) *Scanner {
	return &Scanner{sysfsPath: sysfsPath, devPath: devPath}
}

// Scan lists every sg node whose device link resolves to an H:C:T:L name
// and whose device node exists
func (s *Scanner) Scan() ([]Unit, error) {
	entries, err := os.ReadDir(s.sysfsPath)
	if err != nil {
		return nil, err
	}

	var units []Unit
	for _, entry := range entries {
		name := entry.Name()
		link, err := os.Readlink(filepath.Join(s.sysfsPath, name, "device"))
		if err != nil {
			continue
		}
		u, err := parseHCTL(filepath.Base(link))
		if err != nil {
			continue
		}
		u.Name = name
		u.Path = filepath.Join(s.devPath, name)
		if _, err := os.Stat(u.Path); err != nil {
			continue
		}
		units = append(units, u)
	}
	return units, nil
}

// ScanHost finds the units attached to one SCSI host
func (s *Scanner) ScanHost(host int) ([]Unit, error) {
	all, err := s.Scan()
	if err != nil {
		return nil, err
	}

	var filtered []Unit
	for _, u := range all {
		if u.Host == host {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

// Scan uses the default scanner to find all sg nodes
func Scan() ([]Unit, error) {
	return NewScanner().Scan()
}

func parseHCTL(s string) (Unit, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Unit{}, fmt.Errorf("%q is not H:C:T:L", s)
	}

	var u Unit
	var err error
	if u.Host, err = strconv.Atoi(parts[0]); err != nil {
		return Unit{}, err
	}
	if u.Channel, err = strconv.Atoi(parts[1]); err != nil {
		return Unit{}, err
	}
	if u.Target, err = strconv.Atoi(parts[2]); err != nil {
		return Unit{}, err
	}
	if u.Lun, err = strconv.ParseUint(parts[3], 10, 64); err != nil {
		return Unit{}, err
	}
	if u.Host < 0 || u.Channel < 0 || u.Target < 0 {
		return Unit{}, fmt.Errorf("%q has a negative component", s)
	}
	return u, nil
}
