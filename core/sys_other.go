//go:build !unix

package core

import "syscall"

func controlSocket(network, address string, c syscall.RawConn) error {
	return nil
}
