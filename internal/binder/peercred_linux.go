//go:build linux

package binder

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// checkPeer verifies the uid of the process on the other end of conn.
func checkPeer(conn net.Conn, uid int) error {
	if uid < 0 {
		return nil
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("%w: %T is not a unix socket", ErrPeerRejected, conn)
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return fmt.Errorf("peer credentials: %w", err)
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return fmt.Errorf("peer credentials: %w", err)
	}
	if credErr != nil {
		return fmt.Errorf("peer credentials: %w", credErr)
	}
	if int(cred.Uid) != uid {
		return fmt.Errorf("%w: peer uid %d (pid %d), want %d", ErrPeerRejected, cred.Uid, cred.Pid, uid)
	}
	return nil
}
