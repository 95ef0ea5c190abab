package firmware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dcontrol/midiboot/internal/bootctl"
	"github.com/dcontrol/midiboot/internal/devident"
	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/sysex"
)

// Target is the part of a boot control session the updater drives.
// *bootctl.Session implements it.
type Target interface {
	BlindMode() bool
	EnableBootcode(ctx context.Context) error
	BootCodeInfo(ctx context.Context) (*bootctl.BootCodeInfo, error)
	WriteFirmwareUpdateMsg(ctx context.Context, block sysex.Message, timeout time.Duration) error
	ActivateBank(ctx context.Context, n int) error
	ExitBoot(ctx context.Context) (*devident.Ident, error)
}

// NoBank disables bank activation after writing.
const NoBank = -1

// Config holds the updater configuration.
type Config struct {
	ProgressCallback ProgressCallback
	Logger           *zap.Logger

	// BlockTimeout is the wait for each block's status; zero uses the
	// session default.
	BlockTimeout time.Duration

	// Retries is how many extra attempts a block gets after a retryable
	// failure.
	Retries int

	// ActivateBank is activated after all blocks are written, or NoBank.
	ActivateBank int

	// SkipExit leaves the device in boot code when done.
	SkipExit bool
}

func defaultConfig() Config {
	return Config{
		Retries:      3,
		ActivateBank: NoBank,
	}
}

// Option is a functional option for configuring the Updater.
type Option func(*Config)

// WithProgressCallback sets a callback to track programming progress.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = cb
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithBlockTimeout sets the per-block status timeout.
func WithBlockTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.BlockTimeout = d
	}
}

// WithRetries sets the number of retries per block.
func WithRetries(n int) Option {
	return func(c *Config) {
		if n < 0 {
			n = 0
		}
		c.Retries = n
	}
}

// WithActivateBank activates bank n once all blocks are written.
func WithActivateBank(n int) Option {
	return func(c *Config) {
		c.ActivateBank = n
	}
}

// WithSkipExit leaves the device in boot code after programming.
func WithSkipExit() Option {
	return func(c *Config) {
		c.SkipExit = true
	}
}

// Result summarises a completed Program call.
type Result struct {
	Blocks       int
	BytesWritten int
	Retries      int
	// Before is the bank table read before writing; nil in blind mode or
	// when the read failed.
	Before *bootctl.BootCodeInfo
	// Ident is the application identity after exit; nil with SkipExit.
	Ident   *devident.Ident
	Elapsed time.Duration
}

// WriteError reports a block that could not be written.
type WriteError struct {
	Block    int
	Attempts int
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("block %d failed after %d attempt(s): %v", e.Block, e.Attempts, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Updater programs firmware images through a Target.
type Updater struct {
	target Target
	config Config
	log    *zap.Logger
}

// NewUpdater creates an updater driving target.
func NewUpdater(target Target, opts ...Option) *Updater {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger()
	}
	return &Updater{target: target, config: cfg, log: cfg.Logger}
}

// Program writes img into the device. The device is left in boot code if
// a block fails, so the update can be repeated.
func (u *Updater) Program(ctx context.Context, img *Image) (*Result, error) {
	if img == nil || len(img.Blocks) == 0 {
		return nil, ErrEmptyImage
	}
	blind := u.target.BlindMode()
	if blind && u.config.ActivateBank != NoBank {
		return nil, fmt.Errorf("bank activation is not available in blind mode")
	}

	start := time.Now()
	total := len(img.Blocks)
	res := &Result{Blocks: total}
	report := func(phase Phase, done int, pct float64) {
		u.reportProgress(Progress{
			Phase:        phase,
			CurrentBlock: done,
			TotalBlocks:  total,
			Percentage:   pct,
			BytesWritten: res.BytesWritten,
			Retries:      res.Retries,
			ElapsedTime:  time.Since(start),
		})
	}

	report(PhaseEntering, 0, 0)
	if err := u.target.EnableBootcode(ctx); err != nil {
		return nil, fmt.Errorf("enter boot code: %w", err)
	}

	if !blind {
		report(PhaseReading, 0, 2)
		info, err := u.target.BootCodeInfo(ctx)
		if err != nil {
			u.log.Warn("Could not read bank table before update", zap.Error(err))
		} else {
			res.Before = info
			u.log.Info("Bank table before update", zap.Stringer("banks", info))
		}
	}

	for i, block := range img.Blocks {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("cancelled: %w", err)
		}
		if err := u.writeBlock(ctx, i, block, res); err != nil {
			return res, err
		}
		res.BytesWritten += len(block)
		report(PhaseWriting, i+1, 5+float64(i+1)/float64(total)*85)
	}

	if u.config.ActivateBank != NoBank {
		report(PhaseActivating, total, 92)
		if err := u.target.ActivateBank(ctx, u.config.ActivateBank); err != nil {
			return res, fmt.Errorf("activate bank %d: %w", u.config.ActivateBank, err)
		}
	}

	if !u.config.SkipExit {
		report(PhaseExiting, total, 95)
		id, err := u.target.ExitBoot(ctx)
		if err != nil {
			return res, fmt.Errorf("exit boot code: %w", err)
		}
		res.Ident = id
	}

	res.Elapsed = time.Since(start)
	report(PhaseComplete, total, 100)
	u.log.Info("Firmware update complete",
		zap.Int("blocks", total),
		zap.Int("bytes", res.BytesWritten),
		zap.Int("retries", res.Retries),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (u *Updater) writeBlock(ctx context.Context, index int, block sysex.Message, res *Result) error {
	var err error
	attempts := 0
	for attempts <= u.config.Retries {
		attempts++
		err = u.target.WriteFirmwareUpdateMsg(ctx, block, u.config.BlockTimeout)
		if err == nil {
			return nil
		}
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		if attempts <= u.config.Retries {
			res.Retries++
			u.log.Warn("Retrying firmware block",
				zap.Int("block", index),
				zap.Int("attempt", attempts+1),
				zap.Error(err),
			)
		}
	}
	return &WriteError{Block: index, Attempts: attempts, Err: err}
}

func retryable(err error) bool {
	var e *bootctl.Error
	return errors.As(err, &e) && e.Retryable()
}

func (u *Updater) reportProgress(p Progress) {
	if u.config.ProgressCallback != nil {
		u.config.ProgressCallback(p)
	}
}
