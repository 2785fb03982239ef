// Package kvm wraps the Linux KVM ioctl interface used to drive a
// single-vCPU hardware-virtualized guest: VM/vCPU lifecycle, register and
// XSAVE marshalling, CPUID passthrough, MSR filtering and guest-debug
// single-stepping.
package kvm

import (
	"golang.org/x/sys/unix"
)

// The direction/size/type/number encoding below mirrors Linux's
// include/asm-generic/ioctl.h _IOC macro so that ioctl request numbers can
// be computed from a Go struct's size instead of hand-transcribing hex
// constants.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2

	kvmIO = 0xAE // KVMIO, the ioctl type byte of every KVM request
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

// IIO builds a request number for an ioctl that carries no argument struct.
func IIO(nr uintptr) uintptr {
	return ioc(0, kvmIO, nr, 0)
}

// IIOR builds a request number for an ioctl that reads a struct of the
// given size out of the kernel.
func IIOR(nr, size uintptr) uintptr {
	return ioc(iocRead, kvmIO, nr, size)
}

// IIOW builds a request number for an ioctl that writes a struct of the
// given size into the kernel.
func IIOW(nr, size uintptr) uintptr {
	return ioc(iocWrite, kvmIO, nr, size)
}

// IIOWR builds a request number for an ioctl that both writes and reads a
// struct of the given size.
func IIOWR(nr, size uintptr) uintptr {
	return ioc(iocRead|iocWrite, kvmIO, nr, size)
}

// Ioctl issues request against fd with arg as the third syscall argument,
// retrying on EINTR the way a blocking ioctl (e.g. KVM_RUN, interrupted by a
// signal) must be retried.
func Ioctl(fd uintptr, request uintptr, arg uintptr) (uintptr, error) {
	for {
		ret, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, request, arg)
		if errno == unix.EINTR {
			continue
		}

		if errno != 0 {
			return ret, errno
		}

		return ret, nil
	}
}
