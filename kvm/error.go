package kvm

import "errors"

// ExitType identifies why KVM_RUN returned, read from kvm_run.exit_reason.
//
//go:generate stringer -type=ExitType
type ExitType uint32

const (
	EXITUNKNOWN       ExitType = 0
	EXITEXCEPTION     ExitType = 1
	EXITIO            ExitType = 2
	EXITHYPERCALL     ExitType = 3
	EXITDEBUG         ExitType = 4
	EXITHLT           ExitType = 5
	EXITMMIO          ExitType = 6
	EXITIRQWINDOWOPEN ExitType = 7
	EXITSHUTDOWN      ExitType = 8
	EXITFAILENTRY     ExitType = 9
	EXITINTR          ExitType = 10
	EXITSETTPR        ExitType = 11
	EXITTPRACCESS     ExitType = 12
	EXITS390SIEIC     ExitType = 13
	EXITS390RESET     ExitType = 14
	EXITDCR           ExitType = 15
	EXITNMI           ExitType = 16
	EXITINTERNALERROR ExitType = 17

	EXITIOIN  = 0
	EXITIOOUT = 1
)

// ErrUnexpectedExitReason names a KVM_RUN exit reason this core has no
// handling for. VmEngine does not return it: its Step maps such an exit
// directly to OperatingState SingleStepError.
var ErrUnexpectedExitReason = errors.New("kvm: unexpected exit reason")

// ErrDebug names the EXITDEBUG exit reason, the expected result of a
// successful single-step. VmEngine does not return it: its Step maps
// EXITDEBUG directly to OperatingState Runnable.
var ErrDebug = errors.New("kvm: debug exit")
