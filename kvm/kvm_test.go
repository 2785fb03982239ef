//nolint:dupl,paralleltest
package kvm_test

import (
	"os"
	"testing"

	"x86lab/kvm"
)

func openKVM(t *testing.T) *os.File {
	t.Helper()

	if os.Getuid() != 0 {
		t.Skip("Skipping test since we are not root")
	}

	f, err := os.OpenFile("/dev/kvm", os.O_RDWR, 0o644)
	if err != nil {
		t.Fatal(err)
	}

	return f
}

func TestGetAPIVersion(t *testing.T) {
	devKVM := openKVM(t)
	defer devKVM.Close()

	if _, err := kvm.GetAPIVersion(devKVM.Fd()); err != nil {
		t.Fatal(err)
	}
}

func TestCreateVMAndVCPU(t *testing.T) {
	devKVM := openKVM(t)
	defer devKVM.Close()

	vmFd, err := kvm.CreateVM(devKVM.Fd())
	if err != nil {
		t.Fatal(err)
	}

	if err := kvm.SetTSSAddr(vmFd, 0xffffd000); err != nil {
		t.Fatal(err)
	}

	if err := kvm.SetIdentityMapAddr(vmFd, 0xffffc000); err != nil {
		t.Fatal(err)
	}

	if _, err := kvm.CreateVCPU(vmFd, 0); err != nil {
		t.Fatal(err)
	}
}

func TestCPUIDPassthrough(t *testing.T) {
	devKVM := openKVM(t)
	defer devKVM.Close()

	vmFd, err := kvm.CreateVM(devKVM.Fd())
	if err != nil {
		t.Fatal(err)
	}

	vcpuFd, err := kvm.CreateVCPU(vmFd, 0)
	if err != nil {
		t.Fatal(err)
	}

	c := kvm.CPUID{Nent: 100, Entries: make([]kvm.CPUIDEntry2, 100)}
	if err := kvm.GetSupportedCPUID(devKVM.Fd(), &c); err != nil {
		t.Fatal(err)
	}

	if err := kvm.SetCPUID2(vcpuFd, &c); err != nil {
		t.Fatal(err)
	}

	if err := kvm.GetCPUID2(vcpuFd, &c); err != nil {
		t.Fatal(err)
	}
}

func TestCheckExtension(t *testing.T) {
	devKVM := openKVM(t)
	defer devKVM.Close()

	n, err := kvm.CheckExtension(devKVM.Fd(), kvm.CapNRMemSlots)
	if err != nil {
		t.Fatal(err)
	}

	if n <= 0 {
		t.Fatalf("expected a positive memory slot count, got %d", n)
	}
}
