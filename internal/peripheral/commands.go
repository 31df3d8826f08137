package peripheral

// Logical role names for the two addressable peripherals.
const (
	RoleEntryExit = "entry_exit"
	RolePayment   = "payment"
)

// Command is one byte of the gate-controller command set. The set is closed
// and versioned; the firmware on the other side must speak the same version.
type Command byte

// CommandSetVersion changes whenever a command byte is added or re-assigned.
const CommandSetVersion = 1

const (
	CmdGateRaise   Command = '1'
	CmdGateLower   Command = '0'
	CmdConfirmTone Command = 'S'
	CmdAlarm       Command = 'B'
)
