package vmengine

import (
	"fmt"

	"x86lab/kvm"
	"x86lab/regval"
)

// LoadCode copies code into guest physical address 0 and transitions the
// engine from NoCodeLoaded to Runnable. RIP is set to 0; RSP is set to the
// top of the user-requested memory region (page-table frames added by a
// Long64 SetMode live outside that region and are never touched here). In
// Real16, CS's hidden base is additionally zeroed and its limit set to
// 0xFFFF, since the hypervisor requires limit=0xFFFF in real mode.
func (e *Engine) LoadCode(code []byte) error {
	if uint64(len(code)) > e.memSize {
		return fmt.Errorf("vmengine: code size %d exceeds guest memory %d", len(code), e.memSize)
	}

	copy(e.mem, code)

	regs, err := kvm.GetRegs(e.vcpuFd)
	if err != nil {
		return fmt.Errorf("GetRegs: %w", err)
	}

	regs.RIP = 0
	regs.RSP = e.memSize

	if err := kvm.SetRegs(e.vcpuFd, regs); err != nil {
		return fmt.Errorf("SetRegs: %w", err)
	}

	if e.mode == regval.Real16 {
		sregs, err := kvm.GetSregs(e.vcpuFd)
		if err != nil {
			return fmt.Errorf("GetSregs: %w", err)
		}

		sregs.CS.Base = 0
		sregs.CS.Limit = 0xFFFF
		sregs.CS.Selector = 0

		if err := kvm.SetSregs(e.vcpuFd, sregs); err != nil {
			return fmt.Errorf("SetSregs: %w", err)
		}
	}

	e.state = regval.Runnable

	return nil
}

// Step arms single-stepping (it must be re-armed before every KVM_RUN,
// since a prior register write silently disables it), enters the guest for
// exactly one architectural instruction, and maps the kernel-reported exit
// reason to the new OperatingState.
func (e *Engine) Step() (regval.OperatingState, error) {
	if err := kvm.SingleStep(e.vcpuFd, true); err != nil {
		e.state = regval.SingleStepError

		return e.state, fmt.Errorf("SingleStep: %w", err)
	}

	if err := kvm.Run(e.vcpuFd); err != nil {
		e.state = regval.SingleStepError

		return e.state, fmt.Errorf("Run: %w", err)
	}

	switch kvm.ExitType(e.runData.ExitReason) {
	case kvm.EXITDEBUG:
		e.state = regval.Runnable
	case kvm.EXITSHUTDOWN:
		e.state = regval.Shutdown
	case kvm.EXITHLT:
		e.state = regval.Halted
	default:
		e.state = regval.SingleStepError
	}

	return e.state, nil
}
