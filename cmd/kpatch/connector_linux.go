//go:build linux

package main

import (
	"guestpatch/physical"
	"guestpatch/qemu_linux"
)

func openLive(target string) (physical.Connector, error) {
	c, err := qemu_linux.Open(target)
	if err != nil {
		return nil, err
	}
	return c, nil
}
