package bootctl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dcontrol/midiboot/internal/devident"
	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/midi"
	"github.com/dcontrol/midiboot/internal/sysex"
	"github.com/dcontrol/midiboot/internal/trigger"
)

// Operation names used in errors.
const (
	opIdentify      = "identify"
	opEnableBoot    = "enable boot code"
	opBootInfo      = "boot code info"
	opActivate      = "activate bank"
	opFirmwareWrite = "firmware write"
	opExitBoot      = "exit boot"
	opPrivateReset  = "private reset"
	opSend          = "send"
)

// Session runs the boot protocol against one device.
type Session struct {
	port    midi.Port
	details *devident.Details
	timing  Timing
	log     *zap.Logger

	mu      sync.Mutex
	blind   bool
	lastErr string
}

// New creates a session on port. details may be nil; when it marks the
// interface as CrippledIO the session starts in blind mode.
func New(port midi.Port, details *devident.Details, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger()
	}

	log := cfg.Logger.With(zap.String("port", port.Name()))

	blind := details != nil && details.CrippledIO
	if cfg.Blind != nil {
		blind = *cfg.Blind
	} else if blind {
		log.Warn("Blind mode enabled by device hints", zap.String("device", details.Name))
	}

	return &Session{
		port:    port,
		details: details,
		timing:  cfg.Timing,
		log:     log,
		blind:   blind,
	}
}

// BlindMode reports whether blind mode is on.
func (s *Session) BlindMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blind
}

// SetBlindMode switches blind mode.
func (s *Session) SetBlindMode(blind bool) {
	s.mu.Lock()
	s.blind = blind
	s.mu.Unlock()
	s.log.Info("Blind mode changed", zap.Bool("blind", blind))
}

// LastError returns the text of the most recent failure.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SetOutputSafeMode asks the port to slow its output, if it can.
func (s *Session) SetOutputSafeMode() {
	if sm, ok := s.port.(midi.SafeModer); ok {
		sm.SetSafeMode()
	}
}

func (s *Session) fail(op string, kind Kind, msg string, err error) *Error {
	e := &Error{Op: op, Kind: kind, Message: msg, Err: err}
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	s.log.Debug("Boot control failure",
		zap.String("op", op),
		zap.Stringer("kind", kind),
		zap.String("reason", msg),
		zap.Error(err),
	)
	return e
}

// arm registers a trigger for p, cut down to the manufacturer prefix in
// blind mode.
func (s *Session) arm(p *sysex.Pattern) *trigger.Trigger {
	if s.BlindMode() {
		p = p.Prefix(blindPrefixLen)
	}
	return s.port.Triggers().Arm(p)
}

func (s *Session) send(op string, msg sysex.Message) error {
	if err := s.port.Send(msg); err != nil {
		return s.fail(op, KindTransport, "failed to send command", err)
	}
	return nil
}

func (s *Session) sendThrottled(ctx context.Context, op string, msg sysex.Message) error {
	if err := s.port.SendThrottled(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return s.fail(op, KindTimeout, "cancelled", err)
		}
		return s.fail(op, KindTransport, "failed to send command", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Identify asks the device who it is. In blind mode with non-empty hints,
// any identity-class reply confirms presence and the hints stand in for the
// truncated reply.
func (s *Session) Identify(ctx context.Context) (*devident.Ident, error) {
	t := s.arm(respIdentity)
	defer t.Close()

	if err := s.send(opIdentify, cmdIdentityRequest); err != nil {
		return nil, err
	}
	if !t.WaitContext(ctx, s.timing.Identify) {
		return nil, s.fail(opIdentify, KindTimeout, "Timeout waiting for identity response in BootControl", ctx.Err())
	}
	msg, ok := t.Dequeue()
	if !ok {
		return nil, s.fail(opIdentify, KindTimeout, "identity reply lost", nil)
	}

	if s.BlindMode() && !s.details.IsEmpty() {
		id := s.details.Ident
		id.Raw = msg
		s.log.Info("Blind mode identity taken from device hints", zap.Stringer("ident", &id))
		return &id, nil
	}

	id, err := devident.Parse(msg)
	if err != nil {
		return nil, s.fail(opIdentify, KindIdentityUnavailable, "identity reply could not be decoded", err)
	}
	s.log.Debug("Identity", zap.Stringer("ident", id))
	return id, nil
}

// IsBootcode reports whether the device runs boot code. Only boot code
// answers the bank-info query; the application stays silent.
func (s *Session) IsBootcode(ctx context.Context) bool {
	t := s.arm(respBankInfoAny)
	defer t.Close()

	if err := s.send(opSend, cmdBankInfo[0]); err != nil {
		return false
	}
	return t.WaitContext(ctx, s.timing.IsBootcode)
}

// EnableBootcode brings the device into boot code. A device already there
// is left alone.
func (s *Session) EnableBootcode(ctx context.Context) error {
	if s.IsBootcode(ctx) {
		s.log.Info("Device already running boot code")
		return nil
	}

	reset, err := s.MakePrivateResetCmd(ctx)
	if err != nil {
		return err
	}

	t := s.arm(respRecoveryAny)
	defer t.Close()

	blind := s.BlindMode()
	if blind {
		s.log.Warn("Attempting to enable boot code in blind mode")
	}

	if err := s.send(opEnableBoot, reset); err != nil {
		return err
	}
	if err := sleep(ctx, s.timing.ResetSettle); err != nil {
		return s.fail(opEnableBoot, KindTimeout, "cancelled", err)
	}

	// The boot code only honours enable-recovery shortly after reset and
	// the reboot time is not observable, so keep probing until it answers.
	var reply sysex.Message
	answered := false
	for i := 0; i < s.timing.Probes && !answered; i++ {
		if err := s.send(opEnableBoot, cmdEnableRecovery); err != nil {
			return err
		}
		if err := sleep(ctx, s.timing.ProbeInterval); err != nil {
			return s.fail(opEnableBoot, KindTimeout, "cancelled", err)
		}
		reply, answered = t.Dequeue()
	}

	if blind {
		s.log.Warn("Assuming device is running blind mode boot code")
		return nil
	}

	switch {
	case answered && respRecoveryAck.Match(reply):
		if !s.IsBootcode(ctx) {
			s.correctiveReset()
			return s.fail(opEnableBoot, KindFailed, "Failed to verify device is in boot code", nil)
		}
		s.log.Info("Device is running boot code")
		return nil
	case answered && respRecoveryRejected.Match(reply):
		return s.fail(opEnableBoot, KindRejected, "The device has rejected the enable recovery command", nil)
	case answered && respRecoveryFailed.Match(reply):
		return s.fail(opEnableBoot, KindFailed, "Device has failed the enable recovery command", nil)
	}

	// The device may or may not be in boot code now.
	s.correctiveReset()
	return s.fail(opEnableBoot, KindTimeout, "Timeout entering boot code", nil)
}

func (s *Session) correctiveReset() {
	s.log.Warn("Device state unknown, sending reset")
	if err := s.port.Send(cmdExitBoot); err != nil {
		s.log.Warn("Corrective reset failed", zap.Error(err))
	}
}

// BootCodeInfo queries both code banks. A bank that does not answer is
// reported as unknown rather than failing the call. The returned info is
// non-nil whenever the device is in boot code; the error is set when no
// bank decoded validly.
func (s *Session) BootCodeInfo(ctx context.Context) (*BootCodeInfo, error) {
	if !s.IsBootcode(ctx) {
		return nil, s.fail(opBootInfo, KindPrecondition, "device is not running boot code", nil)
	}

	info := &BootCodeInfo{}
	if id, err := s.Identify(ctx); err == nil {
		info.Version = id.FwVersion
	}

	var t *trigger.Trigger
	for n := range cmdBankInfo {
		p := respBankInfoFor[n]
		if s.BlindMode() {
			p = p.Prefix(blindPrefixLen)
		}
		if t == nil {
			t = s.port.Triggers().Arm(p)
			defer t.Close()
		} else {
			t.SetPattern(p)
		}

		if err := s.sendThrottled(ctx, opBootInfo, cmdBankInfo[n]); err != nil {
			return info, err
		}
		info.Banks[n] = UnknownBank()
		if t.WaitContext(ctx, s.timing.BankInfo) {
			msg, _ := t.Dequeue()
			info.Banks[n] = ParseCodeBankInfo(msg)
		} else {
			s.log.Debug("No bank info reply", zap.Int("bank", n))
		}
	}

	if !info.Ok() {
		return info, s.fail(opBootInfo, KindFailed, "Failed to access boot code information", nil)
	}
	return info, nil
}

// BankInfoString renders both banks on one line.
func (s *Session) BankInfoString(ctx context.Context) string {
	info, err := s.BootCodeInfo(ctx)
	if err != nil {
		return "Failed to access boot code information"
	}
	return info.String()
}

// ActivateBank makes bank n the one the boot code launches. The other bank
// is deactivated only after n is confirmed active, so the device never has
// no active bank.
func (s *Session) ActivateBank(ctx context.Context, n int) error {
	if s.BlindMode() {
		return s.fail(opActivate, KindPrecondition,
			fmt.Sprintf("activateBank %d is not available in blind mode", n), nil)
	}
	if n != 0 && n != 1 {
		return s.fail(opActivate, KindPrecondition, fmt.Sprintf("Invalid bank number %d", n), nil)
	}
	if !s.IsBootcode(ctx) {
		return s.fail(opActivate, KindPrecondition, "not in boot code, can't activate a bank", nil)
	}

	other := 1 - n
	t := s.port.Triggers().Arm(respActivated[n])
	defer t.Close()

	if err := s.sendThrottled(ctx, opActivate, cmdActivate[n]); err != nil {
		return err
	}
	if !t.WaitContext(ctx, s.timing.Activate) {
		return s.fail(opActivate, KindTimeout, fmt.Sprintf("Timeout activating bank %d", n), ctx.Err())
	}

	t.SetPattern(respDeactivated[other])
	if err := s.sendThrottled(ctx, opActivate, cmdDeactivate[other]); err != nil {
		return err
	}
	if !t.WaitContext(ctx, s.timing.Activate) {
		return s.fail(opActivate, KindTimeout, fmt.Sprintf("Timeout deactivating bank %d", other), ctx.Err())
	}

	s.log.Info("Bank activated", zap.Int("bank", n))
	return nil
}

// WriteFirmwareUpdateMsg sends one firmware update block and waits for its
// status. The block is copied before its status-control byte is set; the
// caller's slice is not modified. A zero timeout uses the default.
func (s *Session) WriteFirmwareUpdateMsg(ctx context.Context, block sysex.Message, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.timing.FirmwareWrite
	}
	if len(block) <= statusControlOffset {
		return s.fail(opFirmwareWrite, KindPrecondition,
			fmt.Sprintf("firmware block too short (%d bytes)", len(block)), nil)
	}

	msg := block.Clone()
	msg[statusControlOffset] = statusControlReport

	t := s.arm(respFirmwareUpdate)
	defer t.Close()

	if err := s.send(opFirmwareWrite, msg); err != nil {
		return err
	}

	if !t.WaitContext(ctx, timeout) {
		s.log.Debug("Timeout waiting on firmware block", zap.Stringer("block", msg))
		return s.fail(opFirmwareWrite, KindTimeout,
			"Firmware update failure - timeout after write command.\n"+blockFragment(msg), ctx.Err())
	}
	reply, _ := t.Dequeue()

	if s.BlindMode() {
		reply = normalizeBlindStatus(reply)
	}

	switch {
	case reply.Equal(fuGood):
		return nil
	case reply.Equal(fuBad):
		s.log.Debug("Firmware block rejected", zap.Stringer("reply", reply))
		return s.fail(opFirmwareWrite, KindRejected, "Device reject firmware command - BAD packet.", nil)
	case reply.Equal(fuFailed):
		s.log.Debug("Firmware block failed", zap.Stringer("reply", reply))
		return s.fail(opFirmwareWrite, KindFailed, "Device failed firmware command.", nil)
	}
	s.log.Warn("Unknown firmware write response", zap.Stringer("reply", reply))
	return s.fail(opFirmwareWrite, KindUnknownResponse,
		"Firmware write generated an unknown response from the device.", nil)
}

// normalizeBlindStatus maps the surviving prefix of a firmware status onto
// the full reply. Anything else is returned unchanged.
func normalizeBlindStatus(reply sysex.Message) sysex.Message {
	switch {
	case blindFUGood.Match(reply):
		return fuGood
	case blindFUBad.Match(reply):
		return fuBad
	case blindFUFailed.Match(reply):
		return fuFailed
	}
	return reply
}

// blockFragment returns the part of a block's hex text identifying it in
// timeout reports: characters 15 to 53, just past the command header.
func blockFragment(msg sysex.Message) string {
	text := msg.String()
	const start, length = 15, 38
	if len(text) <= start {
		return ""
	}
	end := start + length
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

// WriteMIDI sends msg without waiting for a reply.
func (s *Session) WriteMIDI(msg sysex.Message) error {
	return s.send(opSend, msg)
}

// ExitBoot launches the application and returns the identity it reports.
// The application must validate before it answers, hence the long wait.
func (s *Session) ExitBoot(ctx context.Context) (*devident.Ident, error) {
	t := s.arm(respIdentity)
	defer t.Close()

	if err := s.send(opExitBoot, cmdExitBoot); err != nil {
		return nil, err
	}
	if !t.WaitContext(ctx, s.timing.ExitBoot) {
		return nil, s.fail(opExitBoot, KindTimeout, "Timeout waiting for the application to start", ctx.Err())
	}
	msg, ok := t.Dequeue()
	if !ok {
		return nil, s.fail(opExitBoot, KindTimeout, "identity reply lost", nil)
	}

	if s.BlindMode() {
		if !s.details.IsEmpty() {
			id := s.details.Ident
			id.Raw = msg
			return &id, nil
		}
		s.log.Warn("Application started, identity unreadable in blind mode")
		return &devident.Ident{Raw: msg}, nil
	}

	id, err := devident.Parse(msg)
	if err != nil {
		return nil, s.fail(opExitBoot, KindIdentityUnavailable, "identity reply could not be decoded", err)
	}
	s.log.Info("Application running", zap.Stringer("ident", id))
	return id, nil
}

// MakePrivateResetCmd builds the reset command for the attached device,
// which needs its family and product bytes.
func (s *Session) MakePrivateResetCmd(ctx context.Context) (sysex.Message, error) {
	id, err := s.Identify(ctx)
	if err != nil {
		s.log.Info("No response from identity request")
		return nil, s.fail(opPrivateReset, KindIdentityUnavailable,
			"cannot build private reset without the device identity", err)
	}
	cmd, err := sysex.FromTemplate(PrivateResetTemplate, id.FamilyByte(), id.ProductByte())
	if err != nil {
		return nil, s.fail(opPrivateReset, KindIdentityUnavailable, "invalid private reset template", err)
	}
	return cmd, nil
}

// PrivateReset resets the device.
func (s *Session) PrivateReset(ctx context.Context) error {
	cmd, err := s.MakePrivateResetCmd(ctx)
	if err != nil {
		return err
	}
	return s.send(opPrivateReset, cmd)
}

// CheckPID reports whether the device in boot code carries product ID pid
// (family byte high, product byte low).
func (s *Session) CheckPID(ctx context.Context, pid int) bool {
	t := s.arm(respPID(pid))
	defer t.Close()

	if err := s.send(opSend, cmdReadPIDFID); err != nil {
		return false
	}
	return t.WaitContext(ctx, s.timing.CheckPID)
}

// CountResponsePattern sends cmd once and counts the replies matching
// pattern over the whole window. It never returns early. A zero window uses
// the default.
func (s *Session) CountResponsePattern(ctx context.Context, cmd sysex.Message, pattern *sysex.Pattern, window time.Duration) int {
	if window <= 0 {
		window = s.timing.CountWindow
	}
	t := s.arm(pattern)
	defer t.Close()

	if err := s.send(opSend, cmd); err != nil {
		return 0
	}
	_ = sleep(ctx, window)
	return t.Count()
}
