//go:build !linux

package main

import (
	"errors"

	"github.com/go-logr/logr"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

var errNoBackend = errors.New("SCSI generic devices are only supported on linux")

func openDevice(string, logr.Logger) (*deviceHandle, error) {
	return nil, errNoBackend
}

func openHost(int, logr.Logger) (raw.ExtScsiPassThruProtocol, raw.Pool, error) {
	return nil, nil, errNoBackend
}

func (c *cli) scan([]string) error {
	return errNoBackend
}

func backendLayout() []layoutRow {
	return nil
}
