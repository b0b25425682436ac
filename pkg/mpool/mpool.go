package mpool

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	pkgerr "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/omf"
	"github.com/sbejawada/mpool-kmod/pkg/pd"
	"github.com/sbejawada/mpool-kmod/pkg/pmd"
	"github.com/sbejawada/mpool-kmod/pkg/util/mlog"
	"github.com/sbejawada/mpool-kmod/pkg/util/uuid"
)

var logger *logrus.Entry

const (
	// PageSize is the read alignment granularity.
	PageSize = 4096

	// DefaultMblockCap is the mblock capacity a pool gets when
	// create is not told otherwise.
	DefaultMblockCap = 8 << 20

	// DefaultReadAhead bounds how far past the written length a
	// speculative read probe may reach before it is rejected.
	DefaultReadAhead = 128 << 10

	// DefaultSparePct is the default share of slots held back as
	// spares on every drive.
	DefaultSparePct = 2

	sbFile = "mpool.sb"
)

// IsMblockID reports whether a raw 64-bit identifier carries the
// mblock kind tag. It never touches the pool.
func IsMblockID(id uint64) bool {
	return omf.ObjID(id).IsMblock()
}

// Mpool is an activated pool. All mblock operations hang off it.
type Mpool struct {
	name string
	uuid string
	dir  string

	sb    *omf.Superblock
	devs  []*pd.Dev
	store *pmd.Store

	readAhead uint64
	rl        *mlog.RateLimit
}

// CreateParams carries everything create needs. Zero geometry
// fields fall back to the package defaults.
type CreateParams struct {
	Name   string
	Dir    string
	Drives []omf.DriveSpec

	MblockCap uint32
	ZoneSize  uint32
	OptIOSize uint32
	SparePct  uint8
}

// ActivateOpts tunes how an existing pool is brought up.
type ActivateOpts struct {
	// FUA opens the drives write-through so commit can skip the
	// explicit flush.
	FUA bool

	// ReadAhead is the probe tolerance past the written length,
	// in bytes. Zero disables it.
	ReadAhead uint64
}

// Create initializes a pool: it sizes and signs the drives and
// writes the superblock. The pool holds nothing afterwards; use
// Activate to start working with it.
func Create(p CreateParams) error {
	logger = mlog.GetPackageLogger("pkg/mpool")
	ctxLogger := mlog.GetFunctionLogger(logger, "Create")

	if p.MblockCap == 0 {
		p.MblockCap = DefaultMblockCap
	}
	if p.ZoneSize == 0 {
		p.ZoneSize = PageSize
	}
	if p.OptIOSize == 0 {
		p.OptIOSize = PageSize
	}
	if p.SparePct == 0 {
		p.SparePct = DefaultSparePct
	}

	if err := validateCreate(&p); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(p.Dir, sbFile)); err == nil {
		return pkgerr.Wrap(merr.ErrExists, p.Dir)
	}
	if err := os.MkdirAll(p.Dir, 0700); err != nil {
		return pkgerr.Wrap(err, "failed to create pool directory")
	}

	sb := &omf.Superblock{
		Version:    omf.SuperblockVersion,
		Name:       p.Name,
		UUID:       uuid.Gen(),
		MblockCap:  p.MblockCap,
		ZoneSize:   p.ZoneSize,
		OptIOSize:  p.OptIOSize,
		SectorSize: pd.SectorSize,
		SparePct:   p.SparePct,
		Drives:     p.Drives,
	}

	for _, d := range p.Drives {
		mclass, err := omf.ParseMediaClass(d.Mclass)
		if err != nil {
			return pkgerr.Wrap(merr.ErrInvalidArgument, err.Error())
		}

		if err := pd.Format(d.Path, d.Size); err != nil {
			return err
		}

		dev, err := pd.Open(d.Path, mclass, p.OptIOSize, false)
		if err != nil {
			return err
		}

		sig, err := omf.NewDevSig(sb.UUID, mclass).Marshal()
		if err != nil {
			dev.Close()
			return err
		}
		if err := dev.WriteAt([][]byte{sig}, 0); err != nil {
			dev.Close()
			return pkgerr.Wrapf(merr.ErrDevice, "failed to sign %s: %v", d.Path, err)
		}
		if err := dev.Flush(); err != nil {
			dev.Close()
			return pkgerr.Wrapf(merr.ErrDevice, "failed to flush %s: %v", d.Path, err)
		}
		dev.Close()
	}

	raw, err := json.MarshalIndent(sb, "", "  ")
	if err != nil {
		return pkgerr.Wrap(err, "failed to encode superblock")
	}
	if err := os.WriteFile(filepath.Join(p.Dir, sbFile), raw, 0600); err != nil {
		return pkgerr.Wrap(err, "failed to write superblock")
	}

	ctxLogger.WithFields(logrus.Fields{
		"pool": p.Name,
		"uuid": sb.UUID,
	}).Info("pool created")

	return nil
}

func validateCreate(p *CreateParams) error {
	if p.Name == "" {
		return pkgerr.Wrap(merr.ErrInvalidArgument, "pool name is empty")
	}
	if p.Dir == "" {
		return pkgerr.Wrap(merr.ErrInvalidArgument, "pool directory is empty")
	}
	if len(p.Drives) == 0 {
		return pkgerr.Wrap(merr.ErrInvalidArgument, "pool needs at least one drive")
	}

	seen := make(map[string]bool)
	for _, d := range p.Drives {
		if d.Path == "" {
			return pkgerr.Wrap(merr.ErrInvalidArgument, "drive path is empty")
		}
		if seen[d.Mclass] {
			return pkgerr.Wrapf(merr.ErrInvalidArgument, "media class %s has two drives", d.Mclass)
		}
		seen[d.Mclass] = true
		if _, err := omf.ParseMediaClass(d.Mclass); err != nil {
			return pkgerr.Wrap(merr.ErrInvalidArgument, err.Error())
		}
	}

	if p.OptIOSize%pd.SectorSize != 0 {
		return pkgerr.Wrap(merr.ErrInvalidArgument, "optimal io size must be sector aligned")
	}
	if p.ZoneSize == 0 || p.ZoneSize%p.OptIOSize != 0 {
		return pkgerr.Wrap(merr.ErrInvalidArgument, "zone size must be a multiple of the optimal io size")
	}
	if omf.DevSigSize%p.ZoneSize != 0 {
		return pkgerr.Wrapf(merr.ErrInvalidArgument, "zone size must divide %d", omf.DevSigSize)
	}
	if p.MblockCap == 0 || uint64(p.MblockCap)%uint64(p.ZoneSize) != 0 {
		return pkgerr.Wrap(merr.ErrInvalidArgument, "mblock capacity must be a multiple of the zone size")
	}

	return nil
}

// Activate opens the pool under dir: reads the superblock, checks
// every drive's signature and replays the object table.
func Activate(dir string, opts ActivateOpts) (*Mpool, error) {
	logger = mlog.GetPackageLogger("pkg/mpool")
	ctxLogger := mlog.GetFunctionLogger(logger, "Activate")

	raw, err := os.ReadFile(filepath.Join(dir, sbFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerr.Wrap(merr.ErrNotFound, dir)
		}
		return nil, pkgerr.Wrap(err, "failed to read superblock")
	}

	sb := &omf.Superblock{}
	if err := json.Unmarshal(raw, sb); err != nil {
		return nil, pkgerr.Wrap(err, "failed to decode superblock")
	}
	if sb.Version != omf.SuperblockVersion {
		return nil, pkgerr.Wrapf(merr.ErrInvalidArgument, "superblock version %d not supported", sb.Version)
	}

	m := &Mpool{
		name:      sb.Name,
		uuid:      sb.UUID,
		dir:       dir,
		sb:        sb,
		readAhead: opts.ReadAhead,
		rl:        mlog.NewRateLimit(time.Second),
	}

	for _, d := range sb.Drives {
		mclass, err := omf.ParseMediaClass(d.Mclass)
		if err != nil {
			m.closeDevs()
			return nil, pkgerr.Wrap(merr.ErrInvalidArgument, err.Error())
		}

		dev, err := pd.Open(d.Path, mclass, sb.OptIOSize, opts.FUA)
		if err != nil {
			m.closeDevs()
			return nil, err
		}
		m.devs = append(m.devs, dev)

		if err := m.checkSig(dev); err != nil {
			m.closeDevs()
			return nil, err
		}
	}

	store, err := pmd.Open(dir, m.devs, uint64(sb.MblockCap), sb.ZoneSize, sb.SparePct)
	if err != nil {
		m.closeDevs()
		return nil, err
	}
	m.store = store

	nu, nc := store.Counts()
	ctxLogger.WithFields(logrus.Fields{
		"pool":        m.name,
		"uuid":        m.uuid,
		"drives":      len(m.devs),
		"uncommitted": nu,
		"committed":   nc,
	}).Info("pool activated")

	return m, nil
}

func (m *Mpool) checkSig(dev *pd.Dev) error {
	block := make([]byte, omf.DevSigSize)
	if err := dev.ReadAt([][]byte{block}, 0); err != nil {
		return pkgerr.Wrapf(merr.ErrDevice, "failed to read signature of %s: %v", dev.Path(), err)
	}

	sig, err := omf.UnmarshalDevSig(block)
	if err != nil {
		return pkgerr.Wrapf(merr.ErrInvalidArgument, "%s: %v", dev.Path(), err)
	}
	if sig.PoolUUID != m.uuid {
		return pkgerr.Wrapf(merr.ErrInvalidArgument, "%s belongs to pool %s", dev.Path(), sig.PoolUUID)
	}
	if omf.MediaClass(sig.Mclass) != dev.Mclass() {
		return pkgerr.Wrapf(merr.ErrInvalidArgument, "%s is signed for media class %v", dev.Path(), omf.MediaClass(sig.Mclass))
	}
	return nil
}

func (m *Mpool) closeDevs() {
	for _, dev := range m.devs {
		dev.Close()
	}
	m.devs = nil
}

// Deactivate shuts the pool down. Outstanding handles become
// invalid; in-flight operations must have drained.
func (m *Mpool) Deactivate() error {
	if m == nil || m.store == nil {
		return pkgerr.Wrap(merr.ErrInvalidArgument, "pool not activated")
	}

	m.store.Close()
	m.store = nil

	var firstErr error
	for _, dev := range m.devs {
		if err := dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.devs = nil

	logger.WithField("pool", m.name).Info("pool deactivated")
	return firstErr
}

// Name returns the pool name.
func (m *Mpool) Name() string {
	return m.name
}

// UUID returns the pool uuid.
func (m *Mpool) UUID() string {
	return m.uuid
}

// Superblock returns a copy of the pool superblock.
func (m *Mpool) Superblock() omf.Superblock {
	return *m.sb
}

// Usage reports slot accounting per media class.
func (m *Mpool) Usage() []pmd.Usage {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Usage()
}

// Counts returns the number of uncommitted and committed mblocks.
func (m *Mpool) Counts() (uncommitted, committed int) {
	if m == nil || m.store == nil {
		return 0, 0
	}
	return m.store.Counts()
}

// diag logs caller bugs through a rate-limited gate so repeated
// misuse cannot flood the log.
func (m *Mpool) diag(bucket, format string, args ...interface{}) {
	if m.rl.Allow(bucket) {
		logger.WithField("pool", m.name).Warnf(format, args...)
	}
}
