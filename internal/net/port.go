package net

import (
	"fmt"
	"net"
)

// FreeAddr returns a loopback "host:port" that nothing was listening on at the time of the call.
func FreeAddr() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listening to acquire port: %w", err)
	}
	defer listener.Close()
	return listener.Addr().String(), nil
}
