//go:build !linux

package web

import (
	"errors"
	"net"
	"time"
)

func rtt(net.Conn) (time.Duration, error) {
	return 0, errors.New("web: round trip time not available on this platform")
}
