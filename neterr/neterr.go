// Package neterr defines the sentinel error values returned across the
// network-interface and packet-buffer core. Errors are compared with
// errors.Is, following the plain comparable-error-value habit the rest of
// this stack uses rather than a custom error-code interface.
package neterr

import "errors"

var (
	ErrNone            = error(nil)
	ErrInvalidIf       = errors.New("netcore: invalid interface")
	ErrInvalidCfg      = errors.New("netcore: invalid configuration")
	ErrInvalidState    = errors.New("netcore: invalid interface state")
	ErrInvalidAddr     = errors.New("netcore: invalid hardware address")
	ErrInvalidAddrLen  = errors.New("netcore: invalid address length")
	ErrInvalidProtocol = errors.New("netcore: invalid protocol header type")
	ErrInvalidIoCtrl   = errors.New("netcore: invalid IO control option")
	ErrInvalidMTU      = errors.New("netcore: invalid MTU")
	ErrInvalidBufType  = errors.New("netcore: invalid buffer type")
	ErrInvalidBufSize  = errors.New("netcore: invalid buffer size")
	ErrInvalidBufIx    = errors.New("netcore: invalid buffer index")
	ErrInvalidBufLen   = errors.New("netcore: invalid buffer length")
	ErrNoBufAvail      = errors.New("netcore: no buffer available")
	ErrPoolMemAlloc    = errors.New("netcore: pool memory allocation failed")
	ErrLinkDown        = errors.New("netcore: link down")
	ErrLoopbackDisabled = errors.New("netcore: loopback interface disabled")
	ErrTxAddrPend      = errors.New("netcore: transmit pending address resolution")
	ErrTxRdyTimeout    = errors.New("netcore: device transmit-ready timeout")
	ErrRxQFull         = errors.New("netcore: receive ring full")
	ErrRxQSignalFault  = errors.New("netcore: receive ring signal fault")
	ErrTxDeallocQFull  = errors.New("netcore: transmit dealloc ring full")
	ErrTxDeallocQSignalFault = errors.New("netcore: transmit dealloc ring signal fault")
	ErrLockAcquire     = errors.New("netcore: failed to acquire global lock")
	ErrRx              = errors.New("netcore: receive failure")
	ErrTx              = errors.New("netcore: transmit failure")
	ErrNullPtr         = errors.New("netcore: unexpected nil pointer")
	ErrNullFn          = errors.New("netcore: missing required vtable function")
	ErrUnknown         = errors.New("netcore: unknown OS-primitive fault")
)
