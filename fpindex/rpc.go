package fpindex

import (
	"net"
	"net/rpc"
)

// StartRPC registers the service and serves it on addr in the background.
// It returns the bound address and a cleanup callback that stops the
// listener and closes the service.
func StartRPC(svc *Service, addr string) (listenAddr string, cleanup func() error, err error) {
	server := rpc.NewServer()
	if err := server.RegisterName("Index", svc); err != nil {
		_ = svc.Close()
		return "", nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = svc.Close()
		return "", nil, err
	}

	go server.Accept(listener)

	cleanup = func() error {
		_ = listener.Close() // stop accepting new conns
		return svc.Close()
	}
	return listener.Addr().String(), cleanup, nil
}
