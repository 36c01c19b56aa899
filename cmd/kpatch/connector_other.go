//go:build !linux

package main

import (
	"errors"

	"guestpatch/physical"
)

func openLive(target string) (physical.Connector, error) {
	return nil, errors.New("live guests are only supported on linux, use --image")
}
