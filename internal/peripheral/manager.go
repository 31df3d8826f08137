package peripheral

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
)

// ErrRoleUnassigned is returned when an operation names a role that was never
// given a device address.
var ErrRoleUnassigned = errors.New("peripheral: role has no assigned address")

// Known device-path patterns and description substrings for candidate ports.
var (
	devicePathPatterns = []string{"/dev/ttyACM*", "/dev/ttyUSB*"}
	knownDescriptors   = []string{"arduino", "usb-serial"}
)

// Config tunes connection and retry behaviour for every link the manager owns.
type Config struct {
	BaudRate    int
	ReadTimeout time.Duration // per-read block before ErrNoData
	SettleDelay time.Duration // firmware warm-up after open
	RetryDelay  time.Duration // pause between retry attempts
	MaxRetries  int
}

// DefaultConfig matches the deployed gate-controller firmware.
func DefaultConfig() Config {
	return Config{
		BaudRate:    9600,
		ReadTimeout: time.Second,
		SettleDelay: 2 * time.Second,
		RetryDelay:  time.Second,
		MaxRetries:  3,
	}
}

// Candidate is one discovered device.
type Candidate struct {
	Address     string
	Description string
}

// Lister enumerates attached serial devices with their descriptions.
// Injected so discovery is testable without hardware.
type Lister func() ([]Candidate, error)

func listSerialPorts() ([]Candidate, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(ports))
	for _, p := range ports {
		out = append(out, Candidate{Address: p.Name, Description: p.Product})
	}
	return out, nil
}

// RoleStatus is one row of the connection report.
type RoleStatus struct {
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
}

// Manager owns the role -> link mapping and wraps every send and read in
// bounded reconnect/retry, so callers never carry their own retry loops. A
// send or read that exhausts its retries is reported as an error and is never
// fatal: transient hardware faults must not leak into business logic.
type Manager struct {
	cfg  Config
	log  *logger.Logger
	open Opener
	list Lister

	// mu serializes link access: the entry and exit stations share the
	// entry_exit controller, and a serial line cannot be multiplexed.
	mu          sync.Mutex
	discovered  []string
	assignments map[string]string
	links       map[string]*Link
}

// NewManager builds a manager talking real serial hardware.
func NewManager(cfg Config, log *logger.Logger) *Manager {
	return NewManagerWith(cfg, log, OpenSerial, listSerialPorts)
}

// NewManagerWith injects the port opener and device lister.
func NewManagerWith(cfg Config, log *logger.Logger, open Opener, list Lister) *Manager {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	return &Manager{
		cfg:         cfg,
		log:         log,
		open:        open,
		list:        list,
		assignments: make(map[string]string),
		links:       make(map[string]*Link),
	}
}

// Discover enumerates candidate device addresses: known device-path patterns
// first, then ports whose description matches the descriptor allow-list.
// Duplicates collapse; the result is sorted for deterministic assignment.
func (m *Manager) Discover() []string {
	seen := make(map[string]struct{})
	var addrs []string
	add := func(a string) {
		if _, dup := seen[a]; !dup && a != "" {
			seen[a] = struct{}{}
			addrs = append(addrs, a)
		}
	}

	for _, pattern := range devicePathPatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, dev := range matches {
			add(dev)
		}
	}

	if m.list != nil {
		ports, err := m.list()
		if err != nil {
			m.log.Warnw("serial enumeration failed", "err", err)
		}
		for _, p := range ports {
			desc := strings.ToLower(p.Description)
			for _, known := range knownDescriptors {
				if strings.Contains(desc, known) {
					add(p.Address)
					break
				}
			}
		}
	}

	sort.Strings(addrs)
	m.mu.Lock()
	m.discovered = addrs
	m.mu.Unlock()
	return addrs
}

// Assign maps roles to discovered addresses. Explicit assignments take
// precedence; roles without one receive discovered addresses in discovery
// order. Returns false when no role could be assigned, a non-fatal condition
// the caller must check per role before operating a station.
func (m *Manager) Assign(roles []string, explicit map[string]string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.discovered) == 0 && len(explicit) == 0 {
		m.log.Warnw("no peripheral devices detected")
		return false
	}

	available := make(map[string]struct{}, len(m.discovered))
	for _, a := range m.discovered {
		available[a] = struct{}{}
	}

	m.assignments = make(map[string]string)
	used := make(map[string]struct{})

	for _, role := range roles {
		if addr, ok := explicit[role]; ok {
			if _, known := available[addr]; !known {
				m.log.Warnw("explicit address not among discovered devices", "role", role, "address", addr)
				continue
			}
			m.assignments[role] = addr
			used[addr] = struct{}{}
			m.log.Infow("role assigned", "role", role, "address", addr)
		}
	}

	for _, role := range roles {
		if _, done := m.assignments[role]; done {
			continue
		}
		addr := m.nextFree(used)
		if addr == "" {
			m.log.Warnw("no address available for role", "role", role)
			continue
		}
		m.assignments[role] = addr
		used[addr] = struct{}{}
		m.log.Infow("role assigned", "role", role, "address", addr)
	}

	return len(m.assignments) > 0
}

func (m *Manager) nextFree(used map[string]struct{}) string {
	for _, addr := range m.discovered {
		if _, taken := used[addr]; !taken {
			return addr
		}
	}
	return ""
}

// IsAssigned reports whether the role has an address.
func (m *Manager) IsAssigned(role string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.assignments[role]
	return ok
}

// Connect opens the link for the role's assigned address, honouring the
// firmware settle delay. Failure leaves the role disconnected and is reported
// through the returned error, never by panic.
func (m *Manager) Connect(role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(role)
}

func (m *Manager) connectLocked(role string) error {
	addr, ok := m.assignments[role]
	if !ok {
		return ErrRoleUnassigned
	}
	link, ok := m.links[role]
	if !ok || link.Address() != addr {
		link = NewLink(role, addr, m.cfg.BaudRate, m.cfg.ReadTimeout, m.cfg.SettleDelay, m.open)
		m.links[role] = link
	}
	if err := link.Connect(); err != nil {
		m.log.Errorw("peripheral connect failed", "role", role, "address", addr, "err", err)
		return err
	}
	m.log.Infow("peripheral connected", "role", role, "address", addr)
	return nil
}

// IsConnected reports whether the role's link is open.
func (m *Manager) IsConnected(role string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isConnectedLocked(role)
}

func (m *Manager) isConnectedLocked(role string) bool {
	link, ok := m.links[role]
	return ok && link.Connected()
}

// Send writes one command byte with automatic reconnect on transport failure,
// up to the configured retry limit.
func (m *Manager) Send(role string, cmd Command) error {
	return m.withRetries(role, func(l *Link) error {
		return l.Write([]byte{byte(cmd)})
	})
}

// WriteLine writes a newline-terminated text message with the same retry
// policy as Send.
func (m *Manager) WriteLine(role, text string) error {
	return m.withRetries(role, func(l *Link) error {
		return l.Write([]byte(text + "\n"))
	})
}

// ReadLine reads one pending line from the role's peripheral. ok is false
// when nothing was pending or retries were exhausted.
func (m *Manager) ReadLine(role string) (string, bool) {
	var line string
	err := m.withRetries(role, func(l *Link) error {
		var rerr error
		line, rerr = l.ReadLine()
		return rerr
	})
	if err != nil {
		return "", false
	}
	return line, true
}

// ReadDistance interprets the next pending line as an ultrasonic distance
// reading. ok is false when no valid reading is available; callers must not
// treat that as "far away".
func (m *Manager) ReadDistance(role string) (float64, bool) {
	line, ok := m.ReadLine(role)
	if !ok {
		return 0, false
	}
	return parseDistance(line)
}

// OpenGate raises the barrier, holds it for the given duration, then lowers
// it. Blocking; run it off the recognition loop.
func (m *Manager) OpenGate(role string, hold time.Duration) error {
	if err := m.Send(role, CmdGateRaise); err != nil {
		m.log.Errorw("gate raise failed", "role", role, "err", err)
		return err
	}
	m.log.Infow("gate opened", "role", role)
	time.Sleep(hold)
	if err := m.Send(role, CmdGateLower); err != nil {
		m.log.Errorw("gate lower failed", "role", role, "err", err)
		return err
	}
	m.log.Infow("gate closed", "role", role)
	return nil
}

// TriggerAlarm sounds the warning buzzer.
func (m *Manager) TriggerAlarm(role string) error {
	return m.Send(role, CmdAlarm)
}

// ConfirmTone sounds the short confirmation beep.
func (m *Manager) ConfirmTone(role string) error {
	return m.Send(role, CmdConfirmTone)
}

// CloseAll releases every open link. Idempotent.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for role, link := range m.links {
		if link.Connected() {
			link.Close()
			m.log.Infow("peripheral closed", "role", role)
		}
	}
}

// Status reports address and connection state per assigned role.
func (m *Manager) Status() map[string]RoleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]RoleStatus, len(m.assignments))
	for role, addr := range m.assignments {
		out[role] = RoleStatus{Address: addr, Connected: m.isConnectedLocked(role)}
	}
	return out
}

// withRetries runs op over the role's link, reconnecting and retrying on
// transport failure with a fixed inter-retry delay. ErrNoData short-circuits:
// a quiet device is not a fault.
func (m *Manager) withRetries(role string, op func(*Link) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.assignments[role]; !ok {
		return ErrRoleUnassigned
	}

	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		if !m.isConnectedLocked(role) {
			if err := m.connectLocked(role); err != nil {
				lastErr = err
				time.Sleep(m.cfg.RetryDelay)
				continue
			}
		}
		err := op(m.links[role])
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNoData) {
			return ErrNoData
		}
		m.log.Warnw("peripheral i/o failed, will retry", "role", role, "attempt", attempt+1, "err", err)
		lastErr = err
		time.Sleep(m.cfg.RetryDelay)
	}
	m.log.Errorw("peripheral i/o gave up after retries", "role", role, "retries", m.cfg.MaxRetries, "err", lastErr)
	return lastErr
}
